package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"pagesmith/internal/domain"
)

const (
	defaultModel            = "deepseek-coder"
	defaultMaxMessages      = 50
	defaultMaxContentLength = 20000
)

type LLMClient interface {
	Chat(ctx context.Context, model string, turns []domain.Turn) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

type SiteWriter interface {
	SaveSite(ctx context.Context, site domain.Site) error
}

type TokenCounter interface {
	Count(turns []domain.Turn) (int, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Options tunes GenerateService. Zero values fall back to defaults;
// MaxPromptTokens of zero disables the prompt size check. MaxContentLength
// applies to system and user turns.
type Options struct {
	Model            string
	MaxMessages      int
	MaxContentLength int
	MaxPromptTokens  int
	Moderation       bool
}

type GenerateService struct {
	llm      LLMClient
	sites    SiteWriter
	counter  TokenCounter
	validate *validator.Validate
	opts     Options
}

type GenerateInput struct {
	Messages domain.Conversation `validate:"required,min=1,dive"`
}

type GenerateOutput struct {
	Messages domain.Conversation
	Path     string
}

// NewGenerateService wires the generator. counter may be nil, in which case
// prompt tokens are neither counted nor limited.
func NewGenerateService(llm LLMClient, sites SiteWriter, counter TokenCounter, opts Options) (*GenerateService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if sites == nil {
		return nil, errors.New("usecase: site store must not be nil")
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = defaultModel
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = defaultMaxMessages
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = defaultMaxContentLength
	}
	return &GenerateService{
		llm:      llm,
		sites:    sites,
		counter:  counter,
		validate: validator.New(),
		opts:     opts,
	}, nil
}

// Generate sends the conversation to the model, stores the files found in the
// reply under a fresh path and returns the conversation extended with the
// reply.
func (s *GenerateService) Generate(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	if err := s.validateInput(in); err != nil {
		return GenerateOutput{}, err
	}
	last, _ := in.Messages.Last()

	if s.opts.Moderation {
		flagged, err := s.llm.Moderate(ctx, last.Content)
		if err != nil {
			if isRateLimited(err) {
				return GenerateOutput{}, newError(ErrorRateLimited, "moderation_rate_limited", err)
			}
			return GenerateOutput{}, newError(ErrorUpstream, "moderation_error", err)
		}
		if flagged {
			return GenerateOutput{}, newError(ErrorInvalidQuestion, "moderation_flagged", nil)
		}
	}

	promptTokens := 0
	if s.counter != nil {
		n, err := s.counter.Count(in.Messages)
		if err != nil {
			return GenerateOutput{}, newError(ErrorInternal, "token_count_error", err)
		}
		if s.opts.MaxPromptTokens > 0 && n > s.opts.MaxPromptTokens {
			return GenerateOutput{}, newError(ErrorInvalidInput, "prompt_too_large", nil)
		}
		promptTokens = n
	}

	reply, err := s.llm.Chat(ctx, s.opts.Model, in.Messages)
	if err != nil {
		if isRateLimited(err) {
			return GenerateOutput{}, newError(ErrorRateLimited, "llm_rate_limited", err)
		}
		return GenerateOutput{}, newError(ErrorUpstream, "llm_error", err)
	}

	files := ExtractFiles(reply)
	if len(files) == 0 {
		return GenerateOutput{}, newError(ErrorUpstream, "no_files_in_reply", nil)
	}

	out := append(in.Messages.Clone(), domain.Turn{Role: domain.RoleAssistant, Content: reply})
	site := domain.Site{
		Path:         newUUID(),
		Files:        files,
		Model:        s.opts.Model,
		Turns:        len(out),
		PromptTokens: promptTokens,
		CreatedAt:    now().UTC(),
	}
	if err := s.sites.SaveSite(ctx, site); err != nil {
		return GenerateOutput{}, newError(ErrorInternal, "site_write_error", err)
	}

	return GenerateOutput{Messages: out, Path: site.Path}, nil
}

func (s *GenerateService) validateInput(in GenerateInput) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Messages" {
			return newError(ErrorInvalidInput, "empty_conversation", err)
		}
		return newError(ErrorInvalidInput, "invalid_turn", err)
	}
	if len(in.Messages) > s.opts.MaxMessages {
		return newError(ErrorInvalidInput, "too_many_messages", nil)
	}
	for _, t := range in.Messages {
		if strings.TrimSpace(t.Content) == "" {
			return newError(ErrorInvalidInput, "invalid_turn", nil)
		}
		// Assistant turns are earlier model replies; only caller-written text is capped.
		if t.Role != domain.RoleAssistant && len(t.Content) > s.opts.MaxContentLength {
			return newError(ErrorInvalidInput, "content_too_long", nil)
		}
	}
	if last, _ := in.Messages.Last(); last.Role != domain.RoleUser {
		return newError(ErrorInvalidInput, "last_turn_not_user", nil)
	}
	return nil
}

func isRateLimited(err error) bool {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.HTTPStatusCode() == 429
}

var newUUID = func() string {
	return uuid.NewString()
}

var now = time.Now
