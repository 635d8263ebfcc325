// Package generator defines the content-generation boundary and its Gemini
// implementation. The core treats generation as an opaque, possibly slow,
// possibly failing text source; failures skip the cycle, never abort it.
package generator

import (
	"context"
)

// PromptContext carries the persona parameters for one generation request.
type PromptContext struct {
	PersonalityName string
	Persona         string // assembled persona prompt
	Platform        string
	Channel         string // subreddit / channel name, when relevant
	IsReply         bool
}

// Generator produces post and comment text for a persona.
type Generator interface {
	// GeneratePost returns a title and body for a new post.
	GeneratePost(ctx context.Context, pc PromptContext) (title, body string, err error)
	// GenerateComment returns a reply to existing content.
	GenerateComment(ctx context.Context, pc PromptContext, postTitle, postBody string) (string, error)
}
