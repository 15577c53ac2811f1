package events

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/kairon-labs/kairon-backend/internal/channels"
	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	corpussvc "github.com/kairon-labs/kairon-backend/internal/services/corpus"
)

type baseEvent struct {
	deps    *Deps
	bot     uuid.UUID
	user    string
	payload Payload
}

// model_training: assemble the corpus on disk, train, reload the cached
// agent with the fresh artifact.
type modelTrainingEvent struct{ baseEvent }

func newModelTrainingEvent(deps *Deps, bot uuid.UUID, user string, payload Payload) (Event, error) {
	return &modelTrainingEvent{baseEvent{deps, bot, user, payload}}, nil
}

func (e *modelTrainingEvent) Class() domain.EventClass { return domain.EventModelTraining }

func (e *modelTrainingEvent) Validate(ctx context.Context) error {
	intents, err := e.deps.Corpus.ListIntents(ctx, e.bot)
	if err != nil {
		return err
	}
	if len(intents) == 0 {
		return apperr.Validation("Training data does not exists!")
	}
	return nil
}

func (e *modelTrainingEvent) Execute(ctx context.Context) (interface{}, error) {
	dir, err := os.MkdirTemp(e.deps.WorkDir, "train_")
	if err != nil {
		return nil, apperr.Internal("create training dir", err)
	}
	defer os.RemoveAll(dir)

	if err := e.deps.Codec.PrepareTrainingData(ctx, e.bot, dir, nil); err != nil {
		return nil, err
	}
	modelPath, err := e.deps.Engine.Train(ctx, e.bot, dir)
	if err != nil {
		return nil, err
	}
	if _, err := e.deps.Cache.Reload(ctx, e.bot); err != nil {
		e.deps.Log.Warn("Trained model not yet loadable", "bot", e.bot.String(), "error", err)
	}
	return map[string]interface{}{"model": modelPath}, nil
}

// model_testing: replay every stored training example through the loaded
// agent and measure intent accuracy.
type modelTestingEvent struct{ baseEvent }

func newModelTestingEvent(deps *Deps, bot uuid.UUID, user string, payload Payload) (Event, error) {
	return &modelTestingEvent{baseEvent{deps, bot, user, payload}}, nil
}

func (e *modelTestingEvent) Class() domain.EventClass { return domain.EventModelTesting }

func (e *modelTestingEvent) Validate(ctx context.Context) error {
	if _, err := e.deps.Engine.LatestModelPath(e.bot); err != nil {
		return apperr.New(apperr.KindValidation, apperr.MsgBotNotTrained)
	}
	return nil
}

func (e *modelTestingEvent) Execute(ctx context.Context) (interface{}, error) {
	agent, err := e.deps.Cache.Get(ctx, e.bot)
	if err != nil {
		return nil, err
	}
	examples, err := e.deps.Corpus.ListTrainingExamples(ctx, e.bot, "")
	if err != nil {
		return nil, err
	}
	total, passed := 0, 0
	failures := make([]map[string]string, 0)
	for _, example := range examples {
		total++
		prediction, err := agent.HandleMessage(ctx, channels.UserMessage{Text: example.Text, SenderID: "model_tester"})
		if err != nil {
			failures = append(failures, map[string]string{"text": example.Text, "error": err.Error()})
			continue
		}
		if strings.EqualFold(prediction.Intent(), example.Intent) {
			passed++
		} else {
			failures = append(failures, map[string]string{
				"text":      example.Text,
				"expected":  example.Intent,
				"predicted": prediction.Intent(),
			})
		}
	}
	accuracy := 0.0
	if total > 0 {
		accuracy = float64(passed) / float64(total)
	}
	return map[string]interface{}{
		"total":    total,
		"passed":   passed,
		"accuracy": accuracy,
		"failures": failures,
	}, nil
}

// data_importer: load a staged training-file directory into the corpus.
type dataImporterEvent struct{ baseEvent }

func newDataImporterEvent(deps *Deps, bot uuid.UUID, user string, payload Payload) (Event, error) {
	return &dataImporterEvent{baseEvent{deps, bot, user, payload}}, nil
}

func (e *dataImporterEvent) Class() domain.EventClass { return domain.EventDataImporter }

func (e *dataImporterEvent) Validate(context.Context) error {
	path := e.payload.String("path")
	if strings.TrimSpace(path) == "" {
		return apperr.Validation("Training data path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return apperr.Validation("Training data path does not exist")
	}
	return nil
}

func (e *dataImporterEvent) Execute(ctx context.Context) (interface{}, error) {
	path := e.payload.String("path")
	overwrite := e.payload.Bool("overwrite")
	if err := e.deps.Codec.SaveFromPath(ctx, path, e.bot, overwrite, e.user); err != nil {
		return nil, err
	}
	return map[string]interface{}{"path": path, "overwrite": overwrite}, nil
}

// delete_history: drop a sender's conversation log, or the whole bot's.
type deleteHistoryEvent struct{ baseEvent }

func newDeleteHistoryEvent(deps *Deps, bot uuid.UUID, user string, payload Payload) (Event, error) {
	return &deleteHistoryEvent{baseEvent{deps, bot, user, payload}}, nil
}

func (e *deleteHistoryEvent) Class() domain.EventClass { return domain.EventDeleteHistory }

func (e *deleteHistoryEvent) Validate(context.Context) error {
	if until := e.payload.Float("until"); until < 0 {
		return apperr.Validation("Cutoff timestamp cannot be negative")
	}
	return nil
}

func (e *deleteHistoryEvent) Execute(ctx context.Context) (interface{}, error) {
	sender := e.payload.String("sender_id")
	until := e.payload.Float("until")
	var (
		deleted int64
		err     error
	)
	if sender != "" {
		deleted, err = e.deps.Tracker.DeleteForSender(ctx, e.bot, sender, until)
	} else {
		deleted, err = e.deps.Tracker.DeleteForBot(ctx, e.bot, until)
	}
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"deleted": deleted}, nil
}

// multilingual: add translated copies of every training example and text
// response through the configured translation provider.
type multilingualEvent struct{ baseEvent }

func newMultilingualEvent(deps *Deps, bot uuid.UUID, user string, payload Payload) (Event, error) {
	return &multilingualEvent{baseEvent{deps, bot, user, payload}}, nil
}

func (e *multilingualEvent) Class() domain.EventClass { return domain.EventMultilingual }

func (e *multilingualEvent) Validate(context.Context) error {
	if e.deps.Translator == nil {
		return apperr.Validation("Translation provider is not configured")
	}
	if strings.TrimSpace(e.payload.String("dest_language")) == "" {
		return apperr.Validation("Destination language cannot be empty")
	}
	return nil
}

func (e *multilingualEvent) Execute(ctx context.Context) (interface{}, error) {
	dest := e.payload.String("dest_language")
	examples, err := e.deps.Corpus.ListTrainingExamples(ctx, e.bot, "")
	if err != nil {
		return nil, err
	}
	translatedExamples := 0
	for _, example := range examples {
		translated, err := e.deps.Translator.Translate(ctx, example.Text, dest)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindProvider, "Translation failed", err)
		}
		results, err := e.deps.Corpus.AddTrainingExamples(ctx, []string{translated}, example.Intent, e.bot, e.user, false)
		if err != nil {
			return nil, err
		}
		if len(results) == 1 && results[0].ID != nil {
			translatedExamples++
		}
	}
	responses, err := e.deps.Corpus.ListResponses(ctx, e.bot, "")
	if err != nil {
		return nil, err
	}
	translatedResponses := 0
	for _, response := range responses {
		text, err := response.TextValue()
		if err != nil || text == nil {
			continue
		}
		translated, err := e.deps.Translator.Translate(ctx, text.Text, dest)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindProvider, "Translation failed", err)
		}
		if _, err := e.deps.Corpus.AddTextResponse(ctx, translated, response.Name, e.bot, e.user); err != nil {
			if apperr.KindOf(err) == apperr.KindConflict {
				continue
			}
			return nil, err
		}
		translatedResponses++
	}
	return map[string]interface{}{
		"dest_language": dest,
		"examples":      translatedExamples,
		"responses":     translatedResponses,
	}, nil
}

// content_importer: split a document into paragraphs stored as responses.
type contentImporterEvent struct{ baseEvent }

func newContentImporterEvent(deps *Deps, bot uuid.UUID, user string, payload Payload) (Event, error) {
	return &contentImporterEvent{baseEvent{deps, bot, user, payload}}, nil
}

func (e *contentImporterEvent) Class() domain.EventClass { return domain.EventContentImporter }

func (e *contentImporterEvent) Validate(context.Context) error {
	return requirePath(e.payload.String("path"))
}

func (e *contentImporterEvent) Execute(ctx context.Context) (interface{}, error) {
	raw, err := os.ReadFile(e.payload.String("path"))
	if err != nil {
		return nil, apperr.Validation("Content file could not be read")
	}
	count, err := storeChunks(ctx, e.deps.Corpus, e.bot, e.user, "utter_content", string(raw))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"chunks": count}, nil
}

// web_search: fetch a page and store its paragraphs as responses.
type webSearchEvent struct{ baseEvent }

func newWebSearchEvent(deps *Deps, bot uuid.UUID, user string, payload Payload) (Event, error) {
	return &webSearchEvent{baseEvent{deps, bot, user, payload}}, nil
}

func (e *webSearchEvent) Class() domain.EventClass { return domain.EventWebSearch }

func (e *webSearchEvent) Validate(context.Context) error {
	if e.deps.Fetcher == nil {
		return apperr.Validation("Content fetcher is not configured")
	}
	raw := e.payload.String("url")
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return apperr.Validation("URL is malformed")
	}
	return nil
}

func (e *webSearchEvent) Execute(ctx context.Context) (interface{}, error) {
	content, err := e.deps.Fetcher.Fetch(ctx, e.payload.String("url"))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProvider, "Failed to fetch content", err)
	}
	count, err := storeChunks(ctx, e.deps.Corpus, e.bot, e.user, "utter_web", content)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"chunks": count}, nil
}

// faq_importer: a CSV of question/answer rows becomes intent + example +
// response + rule per row.
type faqImporterEvent struct{ baseEvent }

func newFaqImporterEvent(deps *Deps, bot uuid.UUID, user string, payload Payload) (Event, error) {
	return &faqImporterEvent{baseEvent{deps, bot, user, payload}}, nil
}

func (e *faqImporterEvent) Class() domain.EventClass { return domain.EventFaqImporter }

func (e *faqImporterEvent) Validate(context.Context) error {
	return requirePath(e.payload.String("path"))
}

func (e *faqImporterEvent) Execute(ctx context.Context) (interface{}, error) {
	file, err := os.Open(e.payload.String("path"))
	if err != nil {
		return nil, apperr.Validation("FAQ file could not be read")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	imported := 0
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Validation("FAQ file is not valid CSV")
		}
		row++
		if len(record) < 2 {
			continue
		}
		question := strings.TrimSpace(record[0])
		answer := strings.TrimSpace(record[1])
		if question == "" || answer == "" || strings.EqualFold(question, "question") {
			continue
		}
		intent := fmt.Sprintf("faq_%d", row)
		utterance := fmt.Sprintf("utter_faq_%d", row)
		if _, err := e.deps.Corpus.AddTrainingExamples(ctx, []string{question}, intent, e.bot, e.user, false); err != nil {
			return nil, err
		}
		if _, err := e.deps.Corpus.AddTextResponse(ctx, answer, utterance, e.bot, e.user); err != nil {
			return nil, err
		}
		_, err = e.deps.Corpus.AddComplexStory(ctx, &corpussvc.ComplexStoryRequest{
			Name: fmt.Sprintf("faq rule %d", row),
			Type: corpussvc.FlowRule,
			Steps: []corpussvc.StoryStep{
				{Name: intent, Type: corpussvc.StepIntent},
				{Name: utterance, Type: corpussvc.StepBot},
			},
		}, e.bot, e.user)
		if err != nil {
			return nil, err
		}
		imported++
	}
	return map[string]interface{}{"imported": imported}, nil
}

func requirePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return apperr.Validation("File path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return apperr.Validation("File path does not exist")
	}
	return nil
}

// storeChunks writes non-empty paragraphs as variants of sequentially named
// responses, skipping chunks already present.
func storeChunks(ctx context.Context, corpus *corpussvc.Service, bot uuid.UUID, user, prefix, content string) (int, error) {
	count := 0
	for _, chunk := range strings.Split(content, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		name := fmt.Sprintf("%s_%d", prefix, count+1)
		if _, err := corpus.AddTextResponse(ctx, chunk, name, bot, user); err != nil {
			if apperr.KindOf(err) == apperr.KindConflict {
				continue
			}
			return 0, err
		}
		count++
	}
	return count, nil
}
