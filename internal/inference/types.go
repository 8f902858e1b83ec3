package inference

import "fmt"

// Message is one conversational turn, images are base64 without a data: prefix
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// Options carries sampling parameters in the form Ollama reads them
type Options struct {
	Temperature float64 `json:"temperature"`
}

// ChatRequest is the /api/chat request body
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	Options     *Options  `json:"options,omitempty"`
}

// ChatResponse is the /api/chat response envelope.
// Message is a pointer so an absent field can be told apart from empty content.
type ChatResponse struct {
	Model   string   `json:"model"`
	Message *Message `json:"message"`
	Done    bool     `json:"done"`
}

// GenerateRequest is the /api/generate request body
type GenerateRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Stream      bool     `json:"stream"`
	Temperature float64  `json:"temperature"`
	Options     *Options `json:"options,omitempty"`
}

// GenerateResponse is the /api/generate response envelope
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// PagePrompt asks for the text of a single page
func PagePrompt(page, total int) string {
	return fmt.Sprintf("Extract all the text from this PDF page (page %d of %d). "+
		"Format it properly and fix any extraction errors. "+
		"Return only the text content, no additional commentary.", page, total)
}

// BatchPrompt asks for the text of every attached page at once
func BatchPrompt(total int) string {
	return fmt.Sprintf("Extract all the text from these %d PDF pages. "+
		"Format it properly and fix any extraction errors. "+
		"Return only the text content, no additional commentary.", total)
}

// NormalizePrompt wraps text-layer output in a clean-up instruction
func NormalizePrompt(text string) string {
	return fmt.Sprintf(`I have the following text extracted from a PDF document.
Please format it properly, fix any extraction errors, and provide the cleaned text:

%s

Respond only with the cleaned text, no additional commentary or explanations.`, text)
}
