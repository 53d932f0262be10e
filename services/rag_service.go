package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/janani/maai/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrGeneration marks the one failure a caller ever sees: no answer exists.
var ErrGeneration = errors.New("answer generation failed")

// InteractionStore is the persistence collaborator. Append must only ever
// add to a user's history.
type InteractionStore interface {
	Append(ctx context.Context, entry models.InteractionLogEntry) error
}

// RAGService runs one question through the whole pipeline.
type RAGService interface {
	Ask(ctx context.Context, req models.QueryRequest) (*models.AskResponse, error)
	// AskStream is Ask with every English answer fragment passed to emit as
	// it is generated. An emit error aborts the request.
	AskStream(ctx context.Context, req models.QueryRequest, emit func(fragment string) error) (*models.AskResponse, error)
}

// RAGDependencies are the collaborators the pipeline is built from.
// Identifier and Store are optional.
type RAGDependencies struct {
	Translator   Translator
	Identifier   *LanguageIdentifier
	Generator    AnswerGenerator
	Extractor    ClinicalExtractor
	Store        InteractionStore
	StoreTimeout time.Duration
	Logger       *zap.Logger
}

type ragServiceImpl struct {
	translator   Translator
	identifier   *LanguageIdentifier
	generator    AnswerGenerator
	extractor    ClinicalExtractor
	store        InteractionStore
	storeTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewRAGService(deps RAGDependencies) RAGService {
	storeTimeout := deps.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &ragServiceImpl{
		translator:   deps.Translator,
		identifier:   deps.Identifier,
		generator:    deps.Generator,
		extractor:    deps.Extractor,
		store:        deps.Store,
		storeTimeout: storeTimeout,
		logger:       deps.Logger,
		now:          time.Now,
	}
}

func (r *ragServiceImpl) Ask(ctx context.Context, req models.QueryRequest) (*models.AskResponse, error) {
	return r.AskStream(ctx, req, nil)
}

func (r *ragServiceImpl) AskStream(ctx context.Context, req models.QueryRequest, emit func(fragment string) error) (*models.AskResponse, error) {
	req.ApplyDefaults()
	r.logger.Info("SERVICE: ask received",
		zap.String("language", req.LanguageCode),
		zap.String("source", req.Source),
		zap.Int("history_turns", len(req.History)))

	// 1. Inbound translation.
	englishQuery, language := r.translateInbound(ctx, req)

	// 2. Retrieval and generation.
	var answer strings.Builder
	for fragment, err := range r.generator.Generate(ctx, englishQuery, req.PatientData, req.History) {
		if err != nil {
			r.logger.Error("SERVICE: generation failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
		}
		answer.WriteString(fragment)
		if emit != nil {
			if err := emit(fragment); err != nil {
				return nil, fmt.Errorf("failed to emit fragment: %w", err)
			}
		}
	}
	englishAnswer := strings.TrimSpace(answer.String())
	if englishAnswer == "" {
		return nil, fmt.Errorf("%w: model returned no text", ErrGeneration)
	}

	// 3. Outbound translation with script enforcement.
	localized := r.translator.TranslateEnforced(ctx, englishAnswer, EnglishCode, OutboundTarget(language))

	// 4. Clinical extraction and 5. persistence never fail the request.
	clinical := r.extractClinical(ctx, englishQuery, englishAnswer)
	r.persist(ctx, models.InteractionLogEntry{
		ID:                 uuid.New().String(),
		Timestamp:          r.now().UTC(),
		UserKey:            models.UserKey(req.UserPhone, req.UserEmail),
		PhoneNumber:        req.UserPhone,
		UserEmail:          req.UserEmail,
		UserName:           req.UserName,
		Source:             req.Source,
		Language:           req.LanguageCode,
		UserMessageNative:  req.Query,
		UserMessageEnglish: englishQuery,
		ReplyEnglish:       englishAnswer,
		ReplyNative:        localized.Text,
		ResolvedLanguage:   localized.ResolvedLanguage,
		Clinical:           clinical,
	})

	return &models.AskResponse{
		EnglishQuery:     englishQuery,
		EnglishAnswer:    englishAnswer,
		LocalizedAnswer:  localized.Text,
		ResolvedLanguage: localized.ResolvedLanguage,
		Status:           models.StatusSuccess,
	}, nil
}

// translateInbound returns the English query and the language the answer
// should go back in.
func (r *ragServiceImpl) translateInbound(ctx context.Context, req models.QueryRequest) (string, string) {
	if IsEnglish(req.LanguageCode) {
		return req.Query, req.LanguageCode
	}

	if r.identifier != nil {
		id, err := r.identifier.Identify(ctx, req.Query)
		if err == nil {
			language := req.LanguageCode
			if det := id.DetectedLanguage; det != "" && !strings.EqualFold(det, "unknown") {
				language = det
			}
			r.logger.Info("SERVICE: language identified",
				zap.String("declared", req.LanguageCode),
				zap.String("detected", id.DetectedLanguage))
			return id.EnglishTranslation, language
		}
		r.logger.Warn("SERVICE: language identification failed, using translator", zap.Error(err))
	}

	return r.translator.Translate(ctx, req.Query, req.LanguageCode, EnglishCode), req.LanguageCode
}

func (r *ragServiceImpl) extractClinical(ctx context.Context, transcript, answer string) (record models.ClinicalRecord) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("SERVICE: clinical extraction panicked, using default record", zap.Any("panic", rec))
			record = models.DefaultClinicalRecord(transcript)
		}
	}()
	return r.extractor.Extract(ctx, transcript, answer)
}

func (r *ragServiceImpl) persist(ctx context.Context, entry models.InteractionLogEntry) {
	if r.store == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("SERVICE: persistence panicked (non-fatal)", zap.Any("panic", rec))
		}
	}()

	// The answer is already computed; a client disconnect must not drop the log.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.storeTimeout)
	defer cancel()

	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.Error("SERVICE: failed to save interaction (non-fatal)",
			zap.String("user_key", entry.UserKey),
			zap.Error(err))
		return
	}
	r.logger.Info("SERVICE: interaction saved",
		zap.String("user_key", entry.UserKey),
		zap.Int("symptoms", len(entry.Clinical.Symptoms)),
		zap.Int("medications", len(entry.Clinical.Medications)))
}
