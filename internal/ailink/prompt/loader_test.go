package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	prompts, err := LoadDefaults()
	require.NoError(t, err)
	require.NotEmpty(t, prompts)

	reg, err := NewRegistry(prompts)
	require.NoError(t, err)

	prompt, err := reg.Get(SlugConversationReply)
	require.NoError(t, err)
	require.Contains(t, prompt.Config.SystemTemplate, "less than 5 words")
	require.Equal(t, []string{"gemini-1.5-flash-8b"}, prompt.PreferredModels())

	temp, ok := prompt.FloatHint("temperature")
	require.True(t, ok)
	require.InDelta(t, 0.7, temp, 0.0001)

	maxTokens, ok := prompt.IntHint("max_output_tokens")
	require.True(t, ok)
	require.Equal(t, 30, maxTokens)

	_, err = reg.Get(SlugHeartbeat)
	require.NoError(t, err)
}

func TestLoadUsesBodyAsSystemTemplate(t *testing.T) {
	data := []byte("---\nslug: greet\nuser_template: \"Say: {{input}}\"\n---\nBe kind.\n")
	p, err := Load("inline", data)
	require.NoError(t, err)
	require.Equal(t, "Be kind.", p.Config.SystemTemplate)
	require.Equal(t, "Say: hello", p.RenderUser("hello"))
}

func TestLoadRejectsInvalidPrompts(t *testing.T) {
	_, err := Load("empty", []byte("   "))
	require.Error(t, err)

	_, err = Load("no-body", []byte("---\nslug: x\n---\n"))
	require.ErrorContains(t, err, "system_template")

	_, err = Load("bad-slug", []byte("---\nslug: Bad Slug\n---\nbody"))
	require.ErrorContains(t, err, "kebab-case")

	_, err = Load("bad-template", []byte("---\nslug: ok\nuser_template: nothing\n---\nbody"))
	require.ErrorContains(t, err, "{{input}}")
}

func TestLoadRegistryOverridesBySlug(t *testing.T) {
	dir := t.TempDir()
	override := "---\nslug: conversation-reply\n---\nAnswer in one word.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reply.md"), []byte(override), 0o600))

	reg, err := LoadRegistry(dir)
	require.NoError(t, err)

	p, err := reg.Get(SlugConversationReply)
	require.NoError(t, err)
	require.Equal(t, "Answer in one word.", p.Config.SystemTemplate)
	require.Len(t, reg.List(), 2)
}

func TestRenderUserWithoutTemplate(t *testing.T) {
	p := &Prompt{}
	require.Equal(t, "hello", p.RenderUser("hello"))
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	p := &Prompt{Config: Config{Slug: "a"}}
	_, err := NewRegistry([]*Prompt{p, p})
	require.ErrorContains(t, err, "duplicate")
}
