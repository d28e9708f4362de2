package render

import (
	"strings"

	"storyforge/internal/storyboard"
)

const fusionInstruction = "CRITICAL INSTRUCTION FOR FUSION: The user will provide a real image of their product. " +
	"Seamlessly integrate this specific product into the scene described above. " +
	"Match the lighting, perspective, and context naturally. " +
	"The product's logo, shape, color, and material properties must be accurately represented as per the provided image. " +
	"Do not generate a generic product; use the provided one."

// BuildPrompt assembles the generation prompt for one panel.
func BuildPrompt(panel *storyboard.Panel, brandColor string) string {
	var b strings.Builder
	b.WriteString("Generate a high-quality, realistic image in 16:9 aspect ratio based on the following description:\n\n")

	writeSection(&b, "Scene Description", panel.SceneDescription)
	writeSection(&b, "Consistent Elements (Maintain these strictly)", panel.ConsistentElements)

	if brandColor != "" {
		writeSection(&b, "Brand Accent Color", "Use "+brandColor+" as a subtle accent color in props, light or set dressing. Never recolor the product itself.")
	}

	b.WriteString(fusionInstruction)
	b.WriteString("\n\n")
	b.WriteString("Please create a detailed, professional image that captures this scene perfectly, adhering to all instructions above.")
	return b.String()
}

func writeSection(b *strings.Builder, title, body string) {
	b.WriteString(title + ":\n")
	b.WriteString(body)
	b.WriteString("\n\n")
}
