// Package stagetest provides in-memory collaborators for exercising the survey stages
// without a model, a platform or real files.
package stagetest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"survey-assistant-be/pkg/extract"
	"survey-assistant-be/pkg/llm"
	"survey-assistant-be/pkg/survey"
)

// LLM answers prompts through Respond and records every prompt it sees.
type LLM struct {
	mu      sync.Mutex
	Respond func(prompt string) (string, error)
	Prompts []string
}

// Replies returns an LLM that hands out the given answers in order and repeats the last.
func Replies(answers ...string) *LLM {
	var i int
	return &LLM{Respond: func(string) (string, error) {
		if len(answers) == 0 {
			return "", errors.New("no scripted answer")
		}
		a := answers[min(i, len(answers)-1)]
		i++
		return a, nil
	}}
}

func (l *LLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	var b strings.Builder
	for _, m := range history {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return l.Generate(ctx, b.String(), options...)
}

func (l *LLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	l.mu.Lock()
	l.Prompts = append(l.Prompts, prompt)
	respond := l.Respond
	l.mu.Unlock()
	if respond == nil {
		return "", errors.New("no responder")
	}
	return respond(prompt)
}

// Calls is the number of prompts answered so far.
func (l *LLM) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Prompts)
}

// Gateway is a platform double keeping surveys in a map.
type Gateway struct {
	mu sync.Mutex

	Token      string
	AuthErr    error
	NextID     int64
	CreateErr  error
	FetchErr   error
	ReplaceErr error

	Surveys      map[int64]survey.Document
	CreatedNames []string
	Replaced     []int64
	Logins       int
}

func NewGateway() *Gateway {
	return &Gateway{Token: "token-1", NextID: 1000, Surveys: map[int64]survey.Document{}}
}

func (g *Gateway) Authenticate(ctx context.Context, username, password string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Logins++
	if g.AuthErr != nil {
		return "", g.AuthErr
	}
	return g.Token, nil
}

func (g *Gateway) Create(ctx context.Context, name, token string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CreatedNames = append(g.CreatedNames, name)
	if g.CreateErr != nil {
		return 0, g.CreateErr
	}
	id := g.NextID
	g.NextID++
	return id, nil
}

func (g *Gateway) Fetch(ctx context.Context, id int64, token string) (survey.Document, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FetchErr != nil {
		return nil, g.FetchErr
	}
	doc, ok := g.Surveys[id]
	if !ok {
		return nil, errors.New("survey not found")
	}
	return doc.Clone(), nil
}

func (g *Gateway) Replace(ctx context.Context, id int64, doc survey.Document, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Replaced = append(g.Replaced, id)
	if g.ReplaceErr != nil {
		return g.ReplaceErr
	}
	g.Surveys[id] = doc.Clone()
	return nil
}

// Creates is the number of create calls made, failed ones included.
func (g *Gateway) Creates() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.CreatedNames)
}

// Extractor returns fixed text or a fixed error.
type Extractor struct {
	Text  string
	Err   error
	Calls int
}

func (e *Extractor) Extract(ctx context.Context, src extract.Source) (string, error) {
	e.Calls++
	return e.Text, e.Err
}
