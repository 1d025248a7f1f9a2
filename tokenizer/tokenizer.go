// Package tokenizer estimates and counts prompt/completion tokens using the
// tiktoken BPE vocabularies, per a fixed registry of encodings (Cl100kBase,
// P50kBase, P50kEdit, R50kBase).
package tokenizer

import (
	"strings"
	"sync"

	"github.com/Laisky/errors/v2"
	"github.com/pkoukk/tiktoken-go"

	"github.com/relayforge/gateway/model"
)

// Name identifies one of the fixed BPE vocabularies this gateway supports.
// Unlike upstream OpenAI, model names are never guessed at: every Model
// either names a Name explicitly or falls through to a per-endpoint default.
type Name string

const (
	Cl100kBase Name = "cl100k_base"
	P50kBase   Name = "p50k_base"
	P50kEdit   Name = "p50k_edit"
	R50kBase   Name = "r50k_base"
)

var (
	mu       sync.Mutex
	encoders = map[Name]*tiktoken.Tiktoken{}
)

func encoderFor(name Name) (*tiktoken.Tiktoken, error) {
	mu.Lock()
	defer mu.Unlock()

	if enc, ok := encoders[name]; ok {
		return enc, nil
	}

	enc, err := tiktoken.GetEncoding(string(name))
	if err != nil {
		return nil, errors.Wrapf(err, "load tiktoken encoding %q", name)
	}
	encoders[name] = enc
	return enc, nil
}

// DefaultFor returns the tokenizer vocabulary used when a Model does not
// declare one explicitly, keyed by which client endpoint is being served:
// chat/completion/embedding/moderation default to cl100k, edit defaults to
// p50k_edit.
func DefaultFor(endpoint string) Name {
	if endpoint == "edit" {
		return P50kEdit
	}
	return Cl100kBase
}

// Resolve picks the Name a Model should use: its own declared tokenizer if
// set and recognized, otherwise the endpoint default.
func Resolve(m model.Model, endpoint string) Name {
	if m.Tokenizer != nil {
		switch Name(*m.Tokenizer) {
		case Cl100kBase, P50kBase, P50kEdit, R50kBase:
			return Name(*m.Tokenizer)
		}
	}
	return DefaultFor(endpoint)
}

// CountText returns the BPE token count of a single string under the named vocabulary.
func CountText(name Name, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	enc, err := encoderFor(name)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountStrings sums CountText over each element: StringArray-prompt
// handling counts each element independently, never joined.
func CountStrings(name Name, texts []string) (int, error) {
	total := 0
	for _, t := range texts {
		n, err := CountText(name, t)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Message is the minimal chat-message shape tokenizer needs, decoupled from
// any particular wire schema so package adapt can feed it directly.
type Message struct {
	Role    string
	Content string
	Name    string
}

// CountMessages implements the chat-completion token estimate: every
// message costs Offsets.TokensPerMessage plus its role/content/name token
// lengths, every named message additionally costs Offsets.TokensPerName,
// and the whole count starts at 3 (the assistant reply primer).
func CountMessages(name Name, offsets model.TokenizerOffsets, messages []Message) (int, error) {
	enc, err := encoderFor(name)
	if err != nil {
		return 0, err
	}

	tokensPerMessage := offsets.TokensPerMessage
	if tokensPerMessage == 0 {
		tokensPerMessage = 3
	}
	tokensPerName := offsets.TokensPerName
	if tokensPerName == 0 {
		tokensPerName = 1
	}

	total := 3
	for _, m := range messages {
		total += tokensPerMessage
		total += len(enc.Encode(m.Role, nil, nil))
		total += len(enc.Encode(m.Content, nil, nil))
		if m.Name != "" {
			total += tokensPerName
			total += len(enc.Encode(m.Name, nil, nil))
		}
	}
	if total < 0 {
		total = 0
	}
	return total, nil
}

// fromTiktokenModelHint maps a handful of well-known upstream model label
// prefixes to a Name. Nothing in the gateway calls it: Resolve falls back to
// DefaultFor, never to a label hint.
func fromTiktokenModelHint(label string) Name {
	switch {
	case strings.HasPrefix(label, "gpt-4"), strings.HasPrefix(label, "gpt-3.5"), strings.HasPrefix(label, "text-embedding"):
		return Cl100kBase
	case strings.HasPrefix(label, "text-davinci-003"), strings.HasPrefix(label, "text-davinci-002"):
		return Cl100kBase
	case strings.HasPrefix(label, "code-"):
		return P50kBase
	default:
		return Cl100kBase
	}
}
