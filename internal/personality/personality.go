// Package personality loads persona definitions and selects which persona
// acts on which platform.
package personality

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Personality is one content-generation persona. Loaded once at process
// start and immutable for the process lifetime.
type Personality struct {
	Name             string                      `json:"name"`
	Bio              []string                    `json:"bio"`
	Knowledge        []string                    `json:"knowledge"`
	Style            Style                       `json:"style"`
	PlatformSettings map[string]PlatformSettings `json:"platform_settings"`
	PostExamples     []string                    `json:"postExamples"`
	MessageExamples  [][]ExampleMessage          `json:"messageExamples"`
}

// Style holds separate vocabularies for posts and replies.
type Style struct {
	Post []string `json:"post"`
	Chat []string `json:"chat"`
}

// PlatformSettings is one persona's configuration for one platform.
type PlatformSettings struct {
	InteractionStyle string   `json:"interaction_style"`
	Channels         []string `json:"channels,omitempty"`
}

// ExampleMessage is one turn of an example conversation.
type ExampleMessage struct {
	User    string `json:"user"`
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
}

// SupportsPlatform reports whether this persona is eligible on the platform.
func (p *Personality) SupportsPlatform(platform string) bool {
	_, ok := p.PlatformSettings[platform]
	return ok
}

// Prompt assembles the persona prompt for the platform. Reply prompts carry
// example responses; post prompts carry example posts.
func (p *Personality) Prompt(platform string, isReply bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. %s", p.Name, strings.Join(p.Bio, " "))

	if ps, ok := p.PlatformSettings[platform]; ok && ps.InteractionStyle != "" {
		fmt.Fprintf(&b, "\n\nPlatform style (%s): %s", platform, ps.InteractionStyle)
	}

	vocab := p.Style.Post
	if isReply {
		vocab = p.Style.Chat
	}
	b.WriteString("\n\nStyle: " + strings.Join(vocab, ", "))

	if isReply {
		var examples []string
		for _, conv := range p.MessageExamples {
			for _, msg := range conv {
				if msg.User == p.Name {
					examples = append(examples, msg.Content.Text)
				}
			}
		}
		if len(examples) > 0 {
			b.WriteString("\n\nExample responses in your style:\n" + strings.Join(examples, "\n"))
		}
	} else if len(p.PostExamples) > 0 {
		b.WriteString("\n\nExample posts in your style:\n" + strings.Join(p.PostExamples, "\n"))
	}
	return b.String()
}

// ContextSnapshot returns the denormalized JSON blob stored alongside each
// recorded action. It is a historical copy, deliberately not a reference:
// the persona definition may change after the fact.
func (p *Personality) ContextSnapshot(isReply bool) string {
	vocab := p.Style.Post
	if isReply {
		vocab = p.Style.Chat
	}
	blob, err := json.Marshal(map[string]any{
		"name":  p.Name,
		"style": vocab,
	})
	if err != nil {
		return "{}"
	}
	return string(blob)
}
