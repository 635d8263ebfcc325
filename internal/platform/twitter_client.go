package platform

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/flavumhive/hivemind/internal/config"
)

// Twitter enforces a hard length cap on the compose box.
const maxTweetLength = 280

// TwitterClient is the external Twitter boundary. The browser implementation
// is stateful and can be torn down and rebuilt when it gets wedged.
type TwitterClient interface {
	Username() string
	PostTweet(ctx context.Context, text string) (string, error)
	ReplyToTweet(ctx context.Context, tweetID, text string) (string, error)
	Close() error
}

const desktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// twitterBrowser drives a real Chrome session against the Twitter web UI.
// There is no official API involved; everything goes through DOM selectors,
// so alternative selectors are raced wherever the UI has variants.
type twitterBrowser struct {
	creds    config.TwitterCredentials
	headless bool
	log      *slog.Logger

	browser *rod.Browser
	page    *rod.Page
	control func() // launcher cleanup
}

// NewTwitterBrowser launches Chrome, applies anti-automation overrides and
// performs the interactive login flow. A failed login closes the browser.
func NewTwitterBrowser(ctx context.Context, creds config.TwitterCredentials, headless bool) (TwitterClient, error) {
	if missing := creds.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("missing twitter credentials: %s", strings.Join(missing, ", "))
	}
	b := &twitterBrowser{
		creds:    creds,
		headless: headless,
		log:      slog.With("platform", "twitter"),
	}
	if err := b.start(ctx); err != nil {
		return nil, err
	}
	if err := b.login(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *twitterBrowser) Username() string { return b.creds.Username }

func (b *twitterBrowser) start(ctx context.Context) error {
	l := launcher.New().
		Headless(b.headless).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set(flags.Flag("window-size"), "1920,1080").
		Set(flags.Flag("lang"), "en-US").
		Set(flags.NoSandbox)
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}
	b.control = l.Kill

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connect to chrome: %w", err)
	}
	b.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	b.page = page

	err = proto.NetworkSetUserAgentOverride{
		UserAgent:      desktopUserAgent,
		Platform:       "MacIntel",
		AcceptLanguage: "en-US,en;q=0.9",
	}.Call(page)
	if err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}
	// Installed before any navigation so the site never sees the automation
	// markers.
	_, err = page.EvalOnNewDocument(`() => {
		Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
		Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
	}`)
	if err != nil {
		return fmt.Errorf("install stealth script: %w", err)
	}
	return nil
}

// login walks the three-step login flow: username, optional email
// verification when Twitter challenges the account, then password.
func (b *twitterBrowser) login(ctx context.Context) error {
	page := b.page.Context(ctx)
	if err := page.Timeout(30 * time.Second).Navigate("https://x.com/i/flow/login"); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for login page: %w", err)
	}
	humanDelay()

	userInput, err := page.Timeout(15 * time.Second).Element(`input[autocomplete='username']`)
	if err != nil {
		return fmt.Errorf("find username field: %w", err)
	}
	if err := typeSlowly(userInput, b.creds.Username); err != nil {
		return fmt.Errorf("enter username: %w", err)
	}
	if err := b.clickSpan(ctx, "Next"); err != nil {
		return fmt.Errorf("advance past username: %w", err)
	}
	humanDelay()

	// Twitter sometimes asks for the account email before the password.
	// Race the two possible next screens instead of guessing.
	el, err := page.Timeout(15 * time.Second).Race().
		Element(`input[type='password']`).
		Element(`input[autocomplete='email'], input[data-testid='ocfEnterTextTextInput']`).
		Do()
	if err != nil {
		return fmt.Errorf("wait for password or email step: %w", err)
	}
	if t, _ := el.Attribute("type"); t == nil || *t != "password" {
		b.log.Info("email verification step requested")
		if err := typeSlowly(el, b.creds.Email); err != nil {
			return fmt.Errorf("enter email: %w", err)
		}
		if err := b.clickSpan(ctx, "Next"); err != nil {
			return fmt.Errorf("advance past email: %w", err)
		}
		humanDelay()
		el, err = page.Timeout(15 * time.Second).Element(`input[type='password']`)
		if err != nil {
			return fmt.Errorf("find password field: %w", err)
		}
	}

	if err := typeSlowly(el, b.creds.Password); err != nil {
		return fmt.Errorf("enter password: %w", err)
	}
	if err := b.clickSpan(ctx, "Log in"); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	// The primary column only renders once the timeline is authenticated.
	if _, err := page.Timeout(20 * time.Second).Element(`div[data-testid='primaryColumn']`); err != nil {
		return fmt.Errorf("login not confirmed: %w", err)
	}
	b.log.Info("twitter login successful", "username", b.creds.Username)
	return nil
}

// PostTweet opens the compose dialog, types the text and submits. Returns
// the new tweet's id, scraped from the author's profile afterwards.
func (b *twitterBrowser) PostTweet(ctx context.Context, text string) (string, error) {
	text = truncateTweet(text)
	page := b.page.Context(ctx)

	if err := page.Timeout(30 * time.Second).Navigate("https://x.com/home"); err != nil {
		return "", fmt.Errorf("open home: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait for home: %w", err)
	}
	if err := b.checkChallenge(); err != nil {
		return "", err
	}
	humanDelay()

	compose, err := page.Timeout(10 * time.Second).Race().
		Element(`a[data-testid='SideNav_NewTweet_Button']`).
		Element(`a[href='/compose/post']`).
		Element(`a[href='/compose/tweet']`).
		Do()
	if err != nil {
		return "", fmt.Errorf("find compose button: %w", err)
	}
	if err := compose.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("open composer: %w", err)
	}
	humanDelay()

	input, err := page.Timeout(10 * time.Second).Race().
		Element(`div[data-testid='tweetTextarea_0']`).
		Element(`div[role='textbox'][contenteditable='true']`).
		Do()
	if err != nil {
		return "", fmt.Errorf("find compose box: %w", err)
	}
	if err := typeSlowly(input, text); err != nil {
		return "", fmt.Errorf("type tweet: %w", err)
	}
	humanDelay()

	submit, err := page.Timeout(10 * time.Second).Race().
		Element(`button[data-testid='tweetButton']`).
		Element(`div[data-testid='tweetButton']`).
		Do()
	if err != nil {
		return "", fmt.Errorf("find post button: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("submit tweet: %w", err)
	}
	humanDelay()

	id, err := b.newestOwnTweetID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve tweet id: %w", err)
	}
	return id, nil
}

// ReplyToTweet opens the tweet's permalink and posts a reply under it.
func (b *twitterBrowser) ReplyToTweet(ctx context.Context, tweetID, text string) (string, error) {
	text = truncateTweet(text)
	page := b.page.Context(ctx)

	url := fmt.Sprintf("https://x.com/i/status/%s", tweetID)
	if err := page.Timeout(30 * time.Second).Navigate(url); err != nil {
		return "", fmt.Errorf("open tweet %s: %w", tweetID, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait for tweet page: %w", err)
	}
	if err := b.checkChallenge(); err != nil {
		return "", err
	}
	humanDelay()

	replyBtn, err := page.Timeout(10 * time.Second).Element(`button[data-testid='reply'], div[data-testid='reply']`)
	if err != nil {
		return "", fmt.Errorf("find reply button: %w", err)
	}
	if err := replyBtn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("open reply composer: %w", err)
	}
	humanDelay()

	input, err := page.Timeout(10 * time.Second).Race().
		Element(`div[data-testid='tweetTextarea_0']`).
		Element(`div[role='textbox'][contenteditable='true']`).
		Do()
	if err != nil {
		return "", fmt.Errorf("find reply box: %w", err)
	}
	if err := typeSlowly(input, text); err != nil {
		return "", fmt.Errorf("type reply: %w", err)
	}
	humanDelay()

	submit, err := page.Timeout(10 * time.Second).Race().
		Element(`button[data-testid='tweetButton']`).
		Element(`div[data-testid='tweetButton']`).
		Do()
	if err != nil {
		return "", fmt.Errorf("find reply submit: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("submit reply: %w", err)
	}
	humanDelay()

	id, err := b.newestOwnTweetID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve reply id: %w", err)
	}
	return id, nil
}

// newestOwnTweetID scrapes the permalink of the most recent tweet on the
// account's own profile. The web UI exposes no id on the compose flow
// itself, so this is the only stable way to learn what was just created.
func (b *twitterBrowser) newestOwnTweetID(ctx context.Context) (string, error) {
	page := b.page.Context(ctx)
	profile := fmt.Sprintf("https://x.com/%s", b.creds.Username)
	if err := page.Timeout(30 * time.Second).Navigate(profile); err != nil {
		return "", err
	}
	if err := page.WaitLoad(); err != nil {
		return "", err
	}

	link, err := page.Timeout(15 * time.Second).Element(`article[data-testid='tweet'] a[href*='/status/']`)
	if err != nil {
		return "", fmt.Errorf("no tweet link on profile: %w", err)
	}
	href, err := link.Attribute("href")
	if err != nil || href == nil {
		return "", fmt.Errorf("tweet link missing href")
	}
	id := tweetIDFromHref(*href)
	if id == "" {
		return "", fmt.Errorf("unparseable tweet href %q", *href)
	}
	return id, nil
}

// checkChallenge detects Twitter's anti-bot interstitials. Hitting one is a
// hard failure so the session gets rebuilt rather than hammered.
func (b *twitterBrowser) checkChallenge() error {
	info, err := b.page.Info()
	if err != nil {
		return nil
	}
	lower := strings.ToLower(info.URL)
	for _, marker := range []string{"challenge", "unusual_activity", "verify", "account/access"} {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("security challenge page detected: %s", info.URL)
		}
	}
	return nil
}

func (b *twitterBrowser) clickSpan(ctx context.Context, label string) error {
	el, err := b.page.Context(ctx).Timeout(10*time.Second).
		ElementR("span", fmt.Sprintf("^%s$", label))
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (b *twitterBrowser) Close() error {
	var err error
	if b.page != nil {
		_ = b.page.Close()
		b.page = nil
	}
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.control != nil {
		b.control()
		b.control = nil
	}
	return err
}

// typeSlowly feeds text into an element in small chunks with short pauses,
// approximating a human typing cadence.
func typeSlowly(el *rod.Element, text string) error {
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	runes := []rune(text)
	const chunk = 24
	for i := 0; i < len(runes); i += chunk {
		end := i + chunk
		if end > len(runes) {
			end = len(runes)
		}
		if err := el.Input(string(runes[i:end])); err != nil {
			return err
		}
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)
	}
	return nil
}

func humanDelay() {
	time.Sleep(time.Duration(500+rand.Intn(1500)) * time.Millisecond)
}

func truncateTweet(text string) string {
	runes := []rune(text)
	if len(runes) <= maxTweetLength {
		return text
	}
	return string(runes[:maxTweetLength-3]) + "..."
}

func tweetIDFromHref(href string) string {
	idx := strings.LastIndex(href, "/status/")
	if idx < 0 {
		return ""
	}
	id := href[idx+len("/status/"):]
	if cut := strings.IndexAny(id, "/?#"); cut >= 0 {
		id = id[:cut]
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return id
}
