// Package metadata generates titles, descriptions, and tags for uploads.
// Output is randomized for variety but always respects the platform limits:
// 100 characters for titles, 5000 for descriptions, 15 tags.
package metadata

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 5000
	maxTags           = 15
)

// Video is the generated metadata for one upload.
type Video struct {
	Title       string
	Description string
	Tags        []string
}

// titlePools maps a content category to its title templates. The category is
// picked by keyword-matching the filename.
var titlePools = map[string][]string{
	"funny": {
		"This Had Me Dying Of Laughter! 😂",
		"The Funniest Video Ever Made!",
		"This Is Comedy Gold! 🏆",
		"Laugh Out Loud Guaranteed! 🤣",
		"Hilarious Moments You Can't Miss!",
	},
	"viral": {
		"Going VIRAL! 🔥 This Is Insane!",
		"This Video Is Blowing Up Everywhere!",
		"Everyone Is Talking About This! 📈",
		"The Hottest Trend Right Now!",
		"Why This Video Went Viral! 📱",
	},
	"amazing": {
		"Absolutely Incredible! 🤩",
		"This Is Truly Remarkable!",
		"Breathtaking Moments! 😍",
		"This Will Leave You Speechless!",
		"Stunning Content You Can't Miss!",
	},
	"shocking": {
		"SHOCKING! You Won't Believe This! 😱",
		"This Left Me In Complete Shock!",
		"You Won't Believe Your Eyes! 👀",
		"This Changes Everything! 💥",
		"Unbelievable Truth Revealed! 🔍",
	},
	"entertainment": {
		"You Won't Believe What Happens Next! 🤯",
		"The Funniest Thing You'll See Today!",
		"Epic Entertainment That Will Blow Your Mind!",
		"This Video Will Make Your Day! 😄",
		"Incredible Moments Caught On Camera!",
	},
}

// defaultTitles is used when no category keyword matches.
var defaultTitles = []string{
	"You Have To Watch This! 🔥",
	"This Is Absolutely Incredible! ⭐",
	"Mind-Blowing Content! 🤯",
	"This Will Blow Your Mind! 💥",
	"Must See Content! 👀",
	"Pure Entertainment! 🎉",
	"Can't Look Away! 👀",
	"This Is Epic! 🌟",
}

// categoryKeywords selects the title pool from filename fragments.
var categoryKeywords = map[string][]string{
	"funny":         {"funny", "comedy", "laugh", "hilarious", "joke"},
	"viral":         {"viral", "trending", "hot", "popular"},
	"amazing":       {"amazing", "beautiful", "stunning", "incredible"},
	"shocking":      {"shock", "unbelievable", "crazy", "insane"},
	"entertainment": {"entertain", "fun", "enjoy", "happy"},
}

// descriptionHooks open the description; one is picked at random.
var descriptionHooks = []string{
	"Mind-Blowing Content",
	"This Will Amaze You",
	"You Won't Believe This",
	"Absolutely Incredible",
	"Pure Entertainment Gold",
	"This Is Going Viral",
	"Epic Content Alert",
	"Must-Watch Video",
	"Viral Sensation",
	"Incredible Footage",
}

// evergreenHashtags pad the hashtag block after the caller's default tags.
var evergreenHashtags = []string{
	"#Viral", "#Trending", "#ForYou", "#FYP", "#MustWatch",
	"#Amazing", "#Incredible", "#Entertainment", "#ExplorePage",
	"#Hot", "#Popular", "#Recommended", "#Discover", "#Epic",
}

// Generator produces upload metadata. Not safe for concurrent use.
type Generator struct {
	businessEmail string
	defaultTags   []string
	rng           *rand.Rand
}

// NewGenerator creates a metadata generator. A nil rng gets a time-seeded
// source; tests pass a fixed seed for deterministic output.
func NewGenerator(businessEmail string, defaultTags []string, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{
		businessEmail: businessEmail,
		defaultTags:   defaultTags,
		rng:           rng,
	}
}

// Generate produces the full metadata set for a video file.
func (g *Generator) Generate(filename string) Video {
	return Video{
		Title:       g.Title(filename),
		Description: g.Description(),
		Tags:        g.Tags(),
	}
}

// Title derives a title from the filename when it reads like a real name,
// otherwise picks a template matching the filename's content category and
// appends a numeric disambiguator.
func (g *Generator) Title(filename string) string {
	if t, ok := titleFromFilename(filename); ok {
		return t
	}

	base := strings.ToLower(strings.TrimSuffix(filename, filepath.Ext(filename)))
	pool := defaultTitles
	for category, keywords := range categoryKeywords {
		if containsAny(base, keywords) {
			pool = titlePools[category]
			break
		}
	}

	title := fmt.Sprintf("%s #%d", pool[g.rng.Intn(len(pool))], 100+g.rng.Intn(900))
	return truncate(title, maxTitleLen)
}

// Description assembles the standard promotional description with a random
// hook, the contact line, and the hashtag block.
func (g *Generator) Description() string {
	hook := descriptionHooks[g.rng.Intn(len(descriptionHooks))]

	var b strings.Builder
	fmt.Fprintf(&b, "🎬 %s - You Won't Believe This!\n\n", hook)
	b.WriteString("🚀 Welcome to the most exciting content around! This video features incredible moments that will leave you speechless!\n\n")
	b.WriteString("📌 What makes this video special:\n")
	b.WriteString("• High-quality, engaging content\n")
	b.WriteString("• Perfect for entertainment lovers\n")
	b.WriteString("• Share-worthy moments\n\n")
	b.WriteString("🔔 SUBSCRIBE and hit the bell for more!\n")
	b.WriteString("👍 LIKE this video if you're enjoying it!\n")
	b.WriteString("💬 COMMENT your thoughts below!\n\n")
	b.WriteString("⏰ New videos uploaded daily! Don't miss out!\n")
	if g.businessEmail != "" {
		fmt.Fprintf(&b, "\n📧 Business/Contact: %s\n", g.businessEmail)
	}
	b.WriteString("\n" + g.hashtagLine())

	return truncate(b.String(), maxDescriptionLen)
}

// Tags returns the default tags topped up with evergreen ones, deduplicated
// in order and capped at the platform limit.
func (g *Generator) Tags() []string {
	tags := make([]string, 0, maxTags)
	seen := make(map[string]bool)

	add := func(tag string) {
		tag = strings.ToLower(strings.TrimPrefix(tag, "#"))
		if tag == "" || seen[tag] || len(tags) >= maxTags {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, t := range g.defaultTags {
		add(t)
	}
	for _, i := range g.rng.Perm(len(evergreenHashtags)) {
		add(evergreenHashtags[i])
	}
	return tags
}

// hashtagLine builds the space-joined hashtag block, default tags first.
func (g *Generator) hashtagLine() string {
	var hashtags []string
	seen := make(map[string]bool)

	add := func(tag string) {
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + camelCase(tag)
		}
		if seen[tag] || len(hashtags) >= maxTags {
			return
		}
		seen[tag] = true
		hashtags = append(hashtags, tag)
	}

	for _, t := range g.defaultTags {
		add(t)
	}
	for _, t := range evergreenHashtags {
		add(t)
	}
	return strings.Join(hashtags, " ")
}

// titleFromFilename accepts the filename as a title when it reads like one:
// mostly words, between 6 and 100 characters once cleaned up.
func titleFromFilename(filename string) (string, bool) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	cleaned := strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if len(cleaned) <= 5 || len(cleaned) > maxTitleLen {
		return "", false
	}

	letters, digits := 0, 0
	for _, r := range cleaned {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			letters++
		case r >= '0' && r <= '9':
			digits++
		}
	}
	// Names like "video_0001" or download IDs are not titles.
	if letters < 5 || (digits > 0 && digits*2 >= letters) {
		return "", false
	}
	if isGeneratedName(cleaned) {
		return "", false
	}
	return cleaned, true
}

// isGeneratedName rejects names that downloaders produce.
func isGeneratedName(s string) bool {
	lower := strings.ToLower(s)
	for _, prefix := range []string{"video ", "download ", "clip ", "untitled", "output "} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// camelCase turns "must watch" into "MustWatch" for hashtag form.
func camelCase(s string) string {
	var b strings.Builder
	for _, word := range strings.Fields(s) {
		r := []rune(word)
		if r[0] >= 'a' && r[0] <= 'z' {
			r[0] -= 'a' - 'A'
		}
		b.WriteString(string(r))
	}
	return b.String()
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// truncate shortens s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
