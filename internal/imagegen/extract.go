package imagegen

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
)

// rawContentThreshold is the text length above which a message body is
// assumed to be a bare base64 image.
const rawContentThreshold = 1000

type extractor struct {
	name string
	fn   func(*apiResponse) []byte
}

// extractors run in order; the first one returning bytes wins.
var extractors = []extractor{
	{name: "inline_attachment", fn: fromInlineAttachment},
	{name: "data_uri_in_text", fn: fromDataURIInText},
	{name: "raw_base64_text", fn: fromRawBase64Text},
	{name: "top_level_images", fn: fromTopLevelImages},
}

func extractImage(resp *apiResponse) ([]byte, string) {
	for _, ex := range extractors {
		if data := ex.fn(resp); len(data) > 0 {
			return data, ex.name
		}
	}
	return nil, ""
}

func fromInlineAttachment(resp *apiResponse) []byte {
	if len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message
		for _, img := range msg.Images {
			if img.ImageURL == nil {
				continue
			}
			if data := decodeDataURL(img.ImageURL.URL); len(data) > 0 {
				return data
			}
		}
		for _, p := range contentParts(msg.Content) {
			if p.ImageURL == nil {
				continue
			}
			if data := decodeDataURL(p.ImageURL.URL); len(data) > 0 {
				return data
			}
		}
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			if data := decodeBase64(p.InlineData.Data); len(data) > 0 {
				return data
			}
		}
	}
	return nil
}

var dataURIPattern = regexp.MustCompile(`data:image/[\w.+-]+;base64,([A-Za-z0-9+/=]+)`)

func fromDataURIInText(resp *apiResponse) []byte {
	text := messageText(resp)
	if text == "" {
		return nil
	}
	matches := dataURIPattern.FindStringSubmatch(text)
	if len(matches) != 2 {
		return nil
	}
	return decodeBase64(matches[1])
}

func fromRawBase64Text(resp *apiResponse) []byte {
	text := strings.TrimSpace(messageText(resp))
	if len(text) <= rawContentThreshold {
		return nil
	}
	data := decodeBase64(text)
	if len(data) == 0 {
		return nil
	}
	// Long prose can happen to be valid base64; require image magic bytes.
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return nil
	}
	return data
}

func fromTopLevelImages(resp *apiResponse) []byte {
	for _, list := range [][]rawImage{resp.Images, resp.Data} {
		for _, img := range list {
			for _, encoded := range []string{img.Data, img.B64JSON} {
				if encoded == "" {
					continue
				}
				if data := decodeBase64(stripDataURLPrefix(encoded)); len(data) > 0 {
					return data
				}
			}
		}
	}
	return nil
}

// messageText flattens the first choice's content (string or part list) and
// any Gemini text parts.
func messageText(resp *apiResponse) string {
	var b strings.Builder
	if len(resp.Choices) > 0 {
		raw := resp.Choices[0].Message.Content
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			b.WriteString(s)
		} else {
			for _, p := range contentParts(raw) {
				b.WriteString(p.Text)
			}
		}
	}
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func contentParts(raw json.RawMessage) []contentPart {
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil
	}
	return parts
}

func decodeDataURL(value string) []byte {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, "base64,") {
		return nil
	}
	_, encoded, _ := strings.Cut(value, "base64,")
	return decodeBase64(encoded)
}

func stripDataURLPrefix(value string) string {
	if strings.HasPrefix(value, "data:") {
		if idx := strings.IndexByte(value, ','); idx >= 0 {
			return value[idx+1:]
		}
	}
	return value
}

func decodeBase64(value string) []byte {
	value = strings.Join(strings.Fields(value), "")
	if value == "" {
		return nil
	}
	if data, err := base64.StdEncoding.DecodeString(value); err == nil {
		return data
	}
	if data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(value, "=")); err == nil {
		return data
	}
	return nil
}
