package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlog(t *testing.T) {
	got, err := Blog(BlogOptions{Topic: "  Go generics ", Style: "humorous", Length: Long})
	require.NoError(t, err)
	assert.Equal(t, `Write a long humorous blog post about "Go generics". The content should be approximately 200 words.`, got)
}

func TestBlog_Defaults(t *testing.T) {
	got, err := Blog(BlogOptions{Topic: "tea"})
	require.NoError(t, err)
	assert.Contains(t, got, "medium informative blog post")
	assert.Contains(t, got, "approximately 100 words")
}

func TestBlog_EmptyTopic(t *testing.T) {
	_, err := Blog(BlogOptions{Topic: "   "})
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestSocial(t *testing.T) {
	got, err := Social(SocialOptions{
		Topic:    "our launch",
		Tone:     "professional",
		Length:   Medium,
		Hashtags: true,
		Audience: "developers",
	})
	require.NoError(t, err)
	assert.Equal(t, "Create a professional social media post about our launch."+
		" Keep it engaging and suitable for social media platforms."+
		" Make it medium length (approximately 150 words)."+
		" Include relevant hashtags."+
		" Target audience: developers. Tone: professional.", got)
	assert.NotContains(t, got, "emojis")
}

func TestSocial_Defaults(t *testing.T) {
	got, err := Social(SocialOptions{Topic: "coffee", Emojis: true})
	require.NoError(t, err)
	assert.Contains(t, got, "Create a casual social media post")
	assert.Contains(t, got, "approximately 50 words")
	assert.Contains(t, got, "Include appropriate emojis.")
	assert.Contains(t, got, "Target audience: general.")
}

func TestSocial_EmptyTopic(t *testing.T) {
	_, err := Social(SocialOptions{})
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestParseLength(t *testing.T) {
	l, err := ParseLength(" Long ")
	require.NoError(t, err)
	assert.Equal(t, Long, l)

	_, err = ParseLength("epic")
	assert.Error(t, err)
}

func TestCounts(t *testing.T) {
	assert.Equal(t, 0, WordCount("  \n\t "))
	assert.Equal(t, 3, WordCount("one  two\nthree"))
	assert.Equal(t, 5, CharCount("héllo"))
}
