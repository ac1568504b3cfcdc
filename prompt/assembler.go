// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prompt

import (
	"fmt"
	"strings"

	"github.com/poiesic/groundit/core"
	"github.com/poiesic/groundit/token"
)

const (
	defaultMaxTurns     = 10
	defaultSafetyMargin = 64

	openInstruction = "You are a helpful, friendly AI assistant. " +
		"Provide clear, accurate, and helpful responses."

	groundedInstruction = "You are a helpful assistant that answers questions " +
		"based on the provided document excerpts. Always cite the information " +
		"from the documents when answering. If the answer is not in the " +
		"documents, say so clearly."
)

// Mode selects the assembly policy.
type Mode int

const (
	// ModeOpen builds a free conversation prompt from recent history.
	ModeOpen Mode = iota + 1
	// ModeGrounded builds a retrieval-grounded prompt with an evidence block.
	ModeGrounded
)

// Request describes one prompt to assemble. History holds the prior turns
// oldest-first, without the newest user input; Retrieval is only consulted
// in grounded mode and must be in rank order.
type Request struct {
	Mode      Mode
	History   []core.Turn
	Question  string
	Retrieval []*core.RetrievalResult
	Budget    int
}

// Prompt is a bounded, ordered message list ready for an LLM call.
type Prompt struct {
	Turns  []core.Turn
	Tokens int
}

// Assembler builds token-bounded prompts. It is stateless and safe for
// concurrent use; the request's history is never mutated.
type Assembler struct {
	counter      token.Counter
	maxTurns     int
	safetyMargin int
}

// Option configures an Assembler.
type Option func(*Assembler) error

// WithMaxTurns sets how many history turns are considered, newest kept.
// Default is 10.
func WithMaxTurns(maxTurns int) Option {
	return func(a *Assembler) error {
		if maxTurns < 1 {
			maxTurns = 1
		}
		a.maxTurns = maxTurns
		return nil
	}
}

// WithSafetyMargin sets the token buffer kept below the budget.
// Default is 64.
func WithSafetyMargin(margin int) Option {
	return func(a *Assembler) error {
		if margin < 0 {
			margin = 0
		}
		a.safetyMargin = margin
		return nil
	}
}

// NewAssembler creates an assembler using the given token counter.
func NewAssembler(counter token.Counter, opts ...Option) (*Assembler, error) {
	if counter == nil {
		return nil, ErrCounterRequired
	}

	a := &Assembler{
		counter:      counter,
		maxTurns:     defaultMaxTurns,
		safetyMargin: defaultSafetyMargin,
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Assemble builds a bounded prompt for the request.
func (a *Assembler) Assemble(req Request) (*Prompt, error) {
	if req.Budget < 1 {
		return nil, ErrInvalidBudget
	}
	if req.Question == "" {
		return nil, ErrEmptyQuestion
	}

	switch req.Mode {
	case ModeOpen:
		return a.assembleOpen(req)
	case ModeGrounded:
		return a.assembleGrounded(req)
	default:
		return nil, ErrInvalidMode
	}
}

// assembleOpen builds: system instruction, last maxTurns history turns
// oldest-first, newest user turn. Oldest history turns are dropped until the
// total fits under budget minus the safety margin.
func (a *Assembler) assembleOpen(req Request) (*Prompt, error) {
	system := a.turn(core.RoleSystem, openInstruction)
	user := a.turn(core.RoleUser, req.Question)

	limit := req.Budget - a.safetyMargin
	if system.Tokens+user.Tokens > limit {
		return nil, ErrContextOverflow
	}

	history := req.History
	if len(history) > a.maxTurns {
		history = history[len(history)-a.maxTurns:]
	}
	turns := make([]core.Turn, 0, len(history))
	total := system.Tokens + user.Tokens
	for _, h := range history {
		t := a.turn(h.Role, h.Content)
		turns = append(turns, t)
		total += t.Tokens
	}

	// Drop oldest history turns first; system and the newest user turn stay
	for total > limit && len(turns) > 0 {
		total -= turns[0].Tokens
		turns = turns[1:]
	}

	assembled := make([]core.Turn, 0, len(turns)+2)
	assembled = append(assembled, system)
	assembled = append(assembled, turns...)
	assembled = append(assembled, user)
	return &Prompt{Turns: assembled, Tokens: total}, nil
}

// assembleGrounded builds: system instruction, then a single user turn
// holding the evidence block and the question. Lowest-ranked chunks are
// dropped whole until the prompt fits; evidence is never cut mid-chunk.
func (a *Assembler) assembleGrounded(req Request) (*Prompt, error) {
	system := a.turn(core.RoleSystem, groundedInstruction)
	limit := req.Budget - a.safetyMargin

	retrieval := req.Retrieval
	for {
		user := a.turn(core.RoleUser, buildEvidence(retrieval, req.Question))
		total := system.Tokens + user.Tokens
		if total <= limit {
			return &Prompt{Turns: []core.Turn{system, user}, Tokens: total}, nil
		}
		if len(retrieval) == 0 {
			return nil, ErrContextOverflow
		}
		retrieval = retrieval[:len(retrieval)-1]
	}
}

// buildEvidence formats retrieval results as a question-bearing evidence
// block. With no results the question is passed through bare.
func buildEvidence(retrieval []*core.RetrievalResult, question string) string {
	if len(retrieval) == 0 {
		return question
	}

	var b strings.Builder
	b.WriteString("Here is relevant information from the documents:\n")
	for i, result := range retrieval {
		fmt.Fprintf(&b, "\n[Document Excerpt %d]\n", i+1)
		b.WriteString(result.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nBased on the above information, please answer the following question:\n")
	b.WriteString(question)
	return b.String()
}

func (a *Assembler) turn(role core.Role, content string) core.Turn {
	return core.Turn{
		Role:    role,
		Content: content,
		Tokens:  a.counter.Count(content),
	}
}
