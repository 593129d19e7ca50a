// Package prompt builds generation prompts for the blog and social post
// commands.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrEmptyTopic is returned when no topic was given.
var ErrEmptyTopic = errors.New("topic is required")

// Length is a requested content length.
type Length string

const (
	Short  Length = "short"
	Medium Length = "medium"
	Long   Length = "long"
)

var blogWords = map[Length]int{Short: 50, Medium: 100, Long: 200}
var socialWords = map[Length]int{Short: 50, Medium: 150, Long: 250}

// Styles lists the tones and styles the service is tuned for.
var Styles = []string{"casual", "professional", "humorous", "informative"}

// ParseLength validates a length flag value.
func ParseLength(s string) (Length, error) {
	l := Length(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := blogWords[l]; !ok {
		return "", fmt.Errorf("unknown length %q (want short, medium or long)", s)
	}
	return l, nil
}

// BlogOptions describes a blog post.
type BlogOptions struct {
	Topic  string
	Style  string
	Length Length
}

// Blog returns the prompt for a blog post. Style defaults to informative
// and length to medium.
func Blog(opts BlogOptions) (string, error) {
	topic := strings.TrimSpace(opts.Topic)
	if topic == "" {
		return "", ErrEmptyTopic
	}
	style := orDefault(opts.Style, "informative")
	length := opts.Length
	if _, ok := blogWords[length]; !ok {
		length = Medium
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s %s blog post about %q.", length, style, topic)
	fmt.Fprintf(&b, " The content should be approximately %d words.", blogWords[length])
	return b.String(), nil
}

// SocialOptions describes a social media post.
type SocialOptions struct {
	Topic    string
	Tone     string
	Length   Length
	Hashtags bool
	Emojis   bool
	Audience string
}

// Social returns the prompt for a social media post. Tone defaults to
// casual, length to short and audience to general.
func Social(opts SocialOptions) (string, error) {
	topic := strings.TrimSpace(opts.Topic)
	if topic == "" {
		return "", ErrEmptyTopic
	}
	tone := orDefault(opts.Tone, "casual")
	audience := orDefault(opts.Audience, "general")
	length := opts.Length
	if _, ok := socialWords[length]; !ok {
		length = Short
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create a %s social media post about %s.", tone, topic)
	b.WriteString(" Keep it engaging and suitable for social media platforms.")
	fmt.Fprintf(&b, " Make it %s length (approximately %d words).", length, socialWords[length])
	if opts.Hashtags {
		b.WriteString(" Include relevant hashtags.")
	}
	if opts.Emojis {
		b.WriteString(" Include appropriate emojis.")
	}
	fmt.Fprintf(&b, " Target audience: %s. Tone: %s.", audience, tone)
	return b.String(), nil
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// CharCount counts characters, not bytes.
func CharCount(s string) int {
	return utf8.RuneCountInString(s)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
