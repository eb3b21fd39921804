package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// maxChunkRunes is the longest text the translate TTS endpoint accepts per request
const maxChunkRunes = 100

// Audio is a synthesized speech clip
type Audio struct {
	Data     []byte
	MIMEType string
}

// Synthesizer turns text into speech audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (Audio, error)
}

// GoogleTTS synthesizes speech through the Google Translate text-to-speech endpoint
type GoogleTTS struct {
	baseURL string
	client  *http.Client
}

func NewGoogleTTS(baseURL string, timeout time.Duration) *GoogleTTS {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleTTS{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *GoogleTTS) Synthesize(ctx context.Context, text, lang string) (Audio, error) {
	chunks := splitText(text, maxChunkRunes)
	if len(chunks) == 0 {
		return Audio{}, errors.New("nothing to synthesize")
	}

	var data []byte
	for i, chunk := range chunks {
		part, err := g.fetch(ctx, chunk, lang, i, len(chunks))
		if err != nil {
			return Audio{}, err
		}
		data = append(data, part...)
	}
	return Audio{Data: data, MIMEType: "audio/mpeg"}, nil
}

func (g *GoogleTTS) fetch(ctx context.Context, chunk, lang string, idx, total int) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", chunk)
	q.Set("tl", lang)
	q.Set("client", "tw-ob")
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts request: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts read body: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("tts returned empty audio")
	}
	return body, nil
}

// splitText breaks text into chunks of at most limit runes, preferring word boundaries
func splitText(text string, limit int) []string {
	var chunks []string
	var cur []rune

	flush := func() {
		if s := strings.TrimSpace(string(cur)); s != "" {
			chunks = append(chunks, s)
		}
		cur = cur[:0]
	}

	for _, word := range strings.Fields(text) {
		w := []rune(word)
		for len(w) > limit {
			flush()
			chunks = append(chunks, string(w[:limit]))
			w = w[limit:]
		}
		extra := len(w)
		if len(cur) > 0 {
			extra++
		}
		if len(cur)+extra > limit {
			flush()
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, w...)
	}
	flush()
	return chunks
}
