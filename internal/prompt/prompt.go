// Package prompt assembles the instruction-following prompt sent to the
// model for one question. Building is pure and deterministic: the same
// inputs always produce a byte-identical prompt.
package prompt

import (
	"fmt"
	"strings"
)

// Mode selects the prompting strategy.
type Mode string

const (
	// ModeDirect asks for a short justification and the answer line.
	ModeDirect Mode = "direct"
	// ModeCoT asks for explicit step-by-step reasoning first.
	ModeCoT Mode = "cot"
	// ModeAuto uses CoT when grounding context is present, direct
	// otherwise. Reasoning over a passage earns its extra tokens.
	ModeAuto Mode = "auto"
)

const (
	directHeader = "Bạn là một trợ lý AI thông minh. Hãy trả lời câu hỏi trắc nghiệm một cách chính xác dựa trên thông tin được cung cấp."
	cotHeader    = "Bạn là một trợ lý AI thông minh. Hãy trả lời câu hỏi trắc nghiệm bằng cách suy luận từng bước."

	cotSteps = `HÃY SUY LUẬN TỪNG BƯỚC (Chain of Thought):

Bước 1: Phân tích yêu cầu câu hỏi.
Bước 2: (Nếu có đoạn thông tin) Tìm chi tiết liên quan trong đoạn thông tin. Trích dẫn ngắn gọn nếu cần.
Bước 3: Phân tích từng lựa chọn.
Bước 4: Loại trừ phương án sai và xác định phương án đúng.
Bước 5: Kết luận.`

	directInstruction = "Định dạng câu trả lời bắt buộc:\nGiải thích: [Giải thích ngắn gọn]\nĐáp án: [Chỉ ghi duy nhất một chữ cái in hoa (%s) không kèm ký tự đặc biệt]"
	cotInstruction    = "Định dạng câu trả lời:\nSuy luận: [Viết đầy đủ các bước suy luận]\nĐáp án: [Chỉ ghi duy nhất một chữ cái in hoa (%s) không kèm ký tự đặc biệt]"
)

// Builder renders prompts in a fixed section order: context, retrieved
// passages, question, choices, instruction.
type Builder struct {
	mode Mode
}

// NewBuilder returns a Builder; an unrecognized mode falls back to auto.
func NewBuilder(mode Mode) *Builder {
	switch mode {
	case ModeDirect, ModeCoT, ModeAuto:
	default:
		mode = ModeAuto
	}
	return &Builder{mode: mode}
}

// Build assembles the prompt for one question. context is the embedded
// passage (may be empty), retrieved holds passages appended by the
// retriever, choices are pre-formatted "A. text" lines joined by newlines
// and labels is the valid label set used in the instruction.
func (b *Builder) Build(context string, retrieved []string, question, choices string, labels []string) string {
	cot := b.mode == ModeCoT || (b.mode == ModeAuto && (context != "" || len(retrieved) > 0))

	var sb strings.Builder
	if cot {
		sb.WriteString(cotHeader)
	} else {
		sb.WriteString(directHeader)
	}
	sb.WriteString("\n\n")

	if context != "" {
		sb.WriteString("Đoạn thông tin:\n")
		sb.WriteString(context)
		sb.WriteString("\n\n")
	}
	for i, p := range retrieved {
		if i == 0 && context == "" {
			sb.WriteString("Đoạn thông tin:\n")
		}
		fmt.Fprintf(&sb, "[Tài liệu %d] %s\n", i+1, p)
		if i == len(retrieved)-1 {
			sb.WriteString("\n")
		}
	}

	sb.WriteString("Câu hỏi: ")
	sb.WriteString(question)
	sb.WriteString("\n\nCác lựa chọn:\n")
	sb.WriteString(choices)
	sb.WriteString("\n\n")

	if cot {
		sb.WriteString(cotSteps)
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, cotInstruction, labelList(labels))
	} else {
		fmt.Fprintf(&sb, directInstruction, labelList(labels))
	}
	return sb.String()
}

func labelList(labels []string) string {
	if len(labels) == 0 {
		return "A, B, C, D, ..."
	}
	return strings.Join(labels, ", ")
}
