package imagegen

import "encoding/json"

// InlineImage is a reference image attached to the user message.
type InlineImage struct {
	MimeType string
	Data     []byte
}

type Request struct {
	Prompt string
	Image  *InlineImage
}

type openRouterRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	Modalities  []string            `json:"modalities,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type generateContentRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature        float64      `json:"temperature,omitempty"`
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// apiResponse is the union of every response shape the extractors know.
type apiResponse struct {
	Choices    []choice    `json:"choices"`
	Candidates []candidate `json:"candidates"`
	Images     []rawImage  `json:"images"`
	Data       []rawImage  `json:"data"`
}

type choice struct {
	Message struct {
		Content json.RawMessage `json:"content"`
		Images  []contentPart   `json:"images"`
	} `json:"message"`
}

type candidate struct {
	Content content `json:"content"`
}

type rawImage struct {
	Data    string `json:"data"`
	B64JSON string `json:"b64_json"`
}
