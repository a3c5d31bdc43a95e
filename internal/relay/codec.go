package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode marshals a message as a flat JSON object with a "type" field.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	head := fmt.Sprintf(`{"type":%q`, msg.Kind())
	var buf bytes.Buffer
	buf.WriteString(head)
	if rest := bytes.TrimSpace(body[1:]); len(rest) > 1 {
		buf.WriteByte(',')
		buf.Write(rest)
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// Decode reads a message produced by Encode (or by a browser view).
func Decode(data []byte) (Message, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("decode: %w", ErrMissingType)
	}
	switch head.Type {
	case KindPageContent:
		return decodeAs[PageContent](data)
	case KindContentExtracted:
		return decodeAs[ContentExtracted](data)
	case KindInitLLM:
		return decodeAs[InitLLM](data)
	case KindSummarizeText:
		return decodeAs[SummarizeText](data)
	case KindTerminateLLM:
		return TerminateLLM{}, nil
	case KindLLMProgress:
		return decodeAs[LLMProgress](data)
	case KindLLMStatus:
		return decodeAs[LLMStatus](data)
	case KindGetStatus:
		return GetStatus{}, nil
	case KindUpdatePopup:
		return UpdatePopup{}, nil
	case KindSummarizePage:
		return decodeAs[SummarizePage](data)
	case KindSummarizeChunk:
		return decodeAs[SummarizeChunk](data)
	case KindSummarizeDone:
		return decodeAs[SummarizeDone](data)
	case KindSummarizeError:
		return decodeAs[SummarizeError](data)
	case KindChatQuery:
		return decodeAs[ChatQuery](data)
	default:
		return nil, fmt.Errorf("decode %q: %w", head.Type, ErrUnknownKind)
	}
}

func decodeAs[T Message](data []byte) (Message, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", msg.Kind(), err)
	}
	return msg, nil
}
