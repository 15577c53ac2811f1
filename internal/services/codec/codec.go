package codec

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
	"github.com/kairon-labs/kairon-backend/internal/platform/logger"
	corpussvc "github.com/kairon-labs/kairon-backend/internal/services/corpus"
)

const trainingFileVersion = "3.1"

// File names of the on-disk training layout.
const (
	FileNLU        = "nlu.yml"
	FileStories    = "stories.yml"
	FileRules      = "rules.yml"
	FileDomain     = "domain.yml"
	FileConfig     = "config.yml"
	FileHTTPAction = "http_action.yml"
)

// Codec converts between the corpus store and the on-disk YAML layout the
// training engine consumes.
type Codec struct {
	corpus *corpussvc.Service
	log    *logger.Logger
}

func New(corpus *corpussvc.Service, baseLog *logger.Logger) *Codec {
	return &Codec{corpus: corpus, log: baseLog.With("service", "CorpusCodec")}
}

type nluBlock struct {
	Intent   string `yaml:"intent,omitempty"`
	Synonym  string `yaml:"synonym,omitempty"`
	Lookup   string `yaml:"lookup,omitempty"`
	Regex    string `yaml:"regex,omitempty"`
	Examples string `yaml:"examples,omitempty"`
}

type nluFile struct {
	Version string     `yaml:"version"`
	NLU     []nluBlock `yaml:"nlu"`
}

type flowStep struct {
	Intent     string                 `yaml:"intent,omitempty"`
	Action     string                 `yaml:"action,omitempty"`
	SlotWasSet map[string]interface{} `yaml:"slot_was_set,omitempty"`
	ActiveLoop string                 `yaml:"active_loop,omitempty"`
}

type storyBlock struct {
	Story string     `yaml:"story,omitempty"`
	Rule  string     `yaml:"rule,omitempty"`
	Steps []flowStep `yaml:"steps"`
}

type storiesFile struct {
	Version string       `yaml:"version"`
	Stories []storyBlock `yaml:"stories,omitempty"`
	Rules   []storyBlock `yaml:"rules,omitempty"`
}

type domainResponse struct {
	Text    string                  `yaml:"text,omitempty"`
	Image   string                  `yaml:"image,omitempty"`
	Buttons []domain.ResponseButton `yaml:"buttons,omitempty"`
	Custom  map[string]interface{}  `yaml:"custom,omitempty"`
}

type domainSlot struct {
	Type                  string      `yaml:"type"`
	InitialValue          interface{} `yaml:"initial_value,omitempty"`
	AutoFill              bool        `yaml:"auto_fill"`
	Values                []string    `yaml:"values,omitempty"`
	InfluenceConversation bool        `yaml:"influence_conversation"`
}

type domainSessionConfig struct {
	SessionExpirationTime int  `yaml:"session_expiration_time"`
	CarryOverSlots        bool `yaml:"carry_over_slots"`
}

type domainYAML struct {
	Version       string                            `yaml:"version"`
	Intents       []string                          `yaml:"intents,omitempty"`
	Entities      []string                          `yaml:"entities,omitempty"`
	Slots         map[string]domainSlot             `yaml:"slots,omitempty"`
	Responses     map[string][]domainResponse       `yaml:"responses,omitempty"`
	Forms         map[string]map[string]interface{} `yaml:"forms,omitempty"`
	Actions       []string                          `yaml:"actions,omitempty"`
	SessionConfig *domainSessionConfig              `yaml:"session_config,omitempty"`
}

type configYAML struct {
	Language string             `yaml:"language"`
	Pipeline []domain.Component `yaml:"pipeline"`
	Policies []domain.Component `yaml:"policies"`
}

type httpActionYAML struct {
	HTTPActions []corpussvc.HTTPActionRequest `yaml:"http_actions"`
}

// PrepareTrainingData writes the selected sections of the bot's corpus into
// dir using the training-file layout: data/nlu.yml, data/stories.yml,
// data/rules.yml, domain.yml, config.yml. A nil selector writes everything.
func (c *Codec) PrepareTrainingData(ctx context.Context, bot uuid.UUID, dir string, which map[string]bool) error {
	all := which == nil
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		return apperr.Internal("create training data dir", err)
	}
	if all || which[corpussvc.CategoryNLU] {
		nlu, err := c.corpus.LoadNLU(ctx, bot)
		if err != nil {
			return err
		}
		if err := writeYAML(filepath.Join(dir, "data", FileNLU), encodeNLU(nlu)); err != nil {
			return err
		}
	}
	if all || which[corpussvc.CategoryStories] || which[corpussvc.CategoryRules] {
		stories, rules, err := c.corpus.LoadStories(ctx, bot)
		if err != nil {
			return err
		}
		if all || which[corpussvc.CategoryStories] {
			if err := writeYAML(filepath.Join(dir, "data", FileStories), encodeStories(stories)); err != nil {
				return err
			}
		}
		if all || which[corpussvc.CategoryRules] {
			if err := writeYAML(filepath.Join(dir, "data", FileRules), encodeRules(rules)); err != nil {
				return err
			}
		}
	}
	if all || which[corpussvc.CategoryDomain] {
		dom, err := c.corpus.LoadDomain(ctx, bot)
		if err != nil {
			return err
		}
		if err := writeYAML(filepath.Join(dir, FileDomain), encodeDomain(dom)); err != nil {
			return err
		}
	}
	if all || which[corpussvc.CategoryConfig] {
		cfg, err := c.corpus.LoadConfig(ctx, bot)
		if err != nil {
			return err
		}
		if err := writeYAML(filepath.Join(dir, FileConfig), configYAML{
			Language: cfg.Language,
			Pipeline: cfg.Pipeline,
			Policies: cfg.Policies,
		}); err != nil {
			return err
		}
	}
	if all || which[corpussvc.CategoryHTTPActions] {
		actions, err := c.corpus.LoadHTTPActions(ctx, bot)
		if err != nil {
			return err
		}
		out := httpActionYAML{HTTPActions: make([]corpussvc.HTTPActionRequest, 0, len(actions))}
		for _, a := range actions {
			out.HTTPActions = append(out.HTTPActions, *a)
		}
		if err := writeYAML(filepath.Join(dir, FileHTTPAction), out); err != nil {
			return err
		}
	}
	c.log.Info("Training data prepared", "bot", bot.String(), "dir", dir)
	return nil
}

// SaveFromPath reads the training files found under path and stores them in
// the corpus. Only the sections whose files are present are written; with
// overwrite their previous content is hard-deleted first. http_action.yml is
// schema-checked before anything is stored.
func (c *Codec) SaveFromPath(ctx context.Context, path string, bot uuid.UUID, overwrite bool, user string) error {
	data, what, err := c.readTrainingDir(path)
	if err != nil {
		return err
	}
	if len(what) == 0 {
		return apperr.Validation("No training files found")
	}
	return c.corpus.SaveTrainingData(ctx, bot, user, data, overwrite, what)
}

// readTrainingDir parses whichever training files exist under path and
// reports the corresponding category set.
func (c *Codec) readTrainingDir(path string) (*corpussvc.TrainingData, map[string]bool, error) {
	data := &corpussvc.TrainingData{}
	what := map[string]bool{}

	if raw, err := os.ReadFile(filepath.Join(path, "data", FileNLU)); err == nil {
		nlu, err := decodeNLU(raw)
		if err != nil {
			return nil, nil, err
		}
		data.NLU = nlu
		what[corpussvc.CategoryNLU] = true
	}
	if raw, err := os.ReadFile(filepath.Join(path, "data", FileStories)); err == nil {
		stories, _, err := decodeFlows(raw)
		if err != nil {
			return nil, nil, err
		}
		data.Stories = stories
		what[corpussvc.CategoryStories] = true
	}
	if raw, err := os.ReadFile(filepath.Join(path, "data", FileRules)); err == nil {
		_, rules, err := decodeFlows(raw)
		if err != nil {
			return nil, nil, err
		}
		data.Rules = rules
		what[corpussvc.CategoryRules] = true
	}
	if raw, err := os.ReadFile(filepath.Join(path, FileDomain)); err == nil {
		dom, err := decodeDomain(raw)
		if err != nil {
			return nil, nil, err
		}
		data.Domain = dom
		what[corpussvc.CategoryDomain] = true
	}
	if raw, err := os.ReadFile(filepath.Join(path, FileConfig)); err == nil {
		var cfg configYAML
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, nil, apperr.Validation("Failed to parse config.yml")
		}
		data.Config = &domain.BotConfig{Language: cfg.Language, Pipeline: cfg.Pipeline, Policies: cfg.Policies}
		what[corpussvc.CategoryConfig] = true
	}
	if raw, err := os.ReadFile(filepath.Join(path, FileHTTPAction)); err == nil {
		actions, err := decodeHTTPActions(raw)
		if err != nil {
			return nil, nil, err
		}
		data.HTTPActions = actions
		what[corpussvc.CategoryHTTPActions] = true
	}
	return data, what, nil
}

// decodeHTTPActions enforces the http_action.yml schema strictly: unknown
// fields and malformed entries are rejected before anything is stored.
func decodeHTTPActions(raw []byte) ([]*corpussvc.HTTPActionRequest, error) {
	var file httpActionYAML
	decoder := yaml.NewDecoder(strings.NewReader(string(raw)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, apperr.Validation("Failed to validate http_action.yml against schema")
	}
	out := make([]*corpussvc.HTTPActionRequest, 0, len(file.HTTPActions))
	for i := range file.HTTPActions {
		out = append(out, &file.HTTPActions[i])
	}
	return out, nil
}

func encodeNLU(nlu *corpussvc.NLUData) nluFile {
	file := nluFile{Version: trainingFileVersion}
	byIntent := map[string][]string{}
	var intents []string
	for _, ex := range nlu.Examples {
		if _, seen := byIntent[ex.Intent]; !seen {
			intents = append(intents, ex.Intent)
		}
		byIntent[ex.Intent] = append(byIntent[ex.Intent], annotateExample(ex.Text, ex.Entities))
	}
	for _, intent := range intents {
		file.NLU = append(file.NLU, nluBlock{Intent: intent, Examples: exampleList(byIntent[intent])})
	}
	for _, name := range sortedKeys(nlu.Synonyms) {
		file.NLU = append(file.NLU, nluBlock{Synonym: name, Examples: exampleList(nlu.Synonyms[name])})
	}
	for _, name := range sortedKeys(nlu.Lookups) {
		file.NLU = append(file.NLU, nluBlock{Lookup: name, Examples: exampleList(nlu.Lookups[name])})
	}
	for _, re := range nlu.Regexes {
		file.NLU = append(file.NLU, nluBlock{Regex: re.Name, Examples: exampleList([]string{re.Pattern})})
	}
	return file
}

func decodeNLU(raw []byte) (*corpussvc.NLUData, error) {
	var file nluFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, apperr.Validation("Failed to parse nlu.yml")
	}
	out := &corpussvc.NLUData{
		Synonyms: map[string][]string{},
		Lookups:  map[string][]string{},
	}
	for _, block := range file.NLU {
		lines := splitExampleList(block.Examples)
		switch {
		case block.Intent != "":
			for _, line := range lines {
				text, entities, _, err := corpussvc.ParseTrainingExample(line)
				if err != nil {
					return nil, err
				}
				out.Examples = append(out.Examples, corpussvc.NLUExample{Intent: block.Intent, Text: text, Entities: entities})
			}
		case block.Synonym != "":
			out.Synonyms[block.Synonym] = append(out.Synonyms[block.Synonym], lines...)
		case block.Lookup != "":
			out.Lookups[block.Lookup] = append(out.Lookups[block.Lookup], lines...)
		case block.Regex != "":
			for _, line := range lines {
				out.Regexes = append(out.Regexes, corpussvc.RegexPattern{Name: block.Regex, Pattern: line})
			}
		}
	}
	return out, nil
}

func encodeStories(stories []*domain.Story) storiesFile {
	file := storiesFile{Version: trainingFileVersion}
	for _, story := range stories {
		file.Stories = append(file.Stories, storyBlock{Story: story.BlockName, Steps: encodeSteps(story.Events)})
	}
	return file
}

func encodeRules(rules []*domain.Rule) storiesFile {
	file := storiesFile{Version: trainingFileVersion}
	for _, rule := range rules {
		file.Rules = append(file.Rules, storyBlock{Rule: rule.BlockName, Steps: encodeSteps(rule.Events)})
	}
	return file
}

func encodeSteps(events []domain.StoryEvent) []flowStep {
	steps := make([]flowStep, 0, len(events))
	for _, ev := range events {
		switch ev.Type {
		case domain.StoryEventUser:
			steps = append(steps, flowStep{Intent: ev.Name})
		case domain.StoryEventAction:
			steps = append(steps, flowStep{Action: ev.Name})
		case domain.StoryEventSlot:
			steps = append(steps, flowStep{SlotWasSet: map[string]interface{}{ev.Name: ev.Value}})
		case domain.StoryEventForm:
			steps = append(steps, flowStep{ActiveLoop: ev.Name})
		}
	}
	return steps
}

func decodeFlows(raw []byte) ([]*domain.Story, []*domain.Rule, error) {
	var file storiesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, nil, apperr.Validation("Failed to parse stories file")
	}
	var stories []*domain.Story
	for _, block := range file.Stories {
		stories = append(stories, &domain.Story{
			BlockName:    block.Story,
			Events:       decodeSteps(block.Steps),
			TemplateType: domain.TemplateTypeCustom,
		})
	}
	var rules []*domain.Rule
	for _, block := range file.Rules {
		rules = append(rules, &domain.Rule{
			BlockName:    block.Rule,
			Events:       decodeSteps(block.Steps),
			TemplateType: domain.TemplateTypeCustom,
		})
	}
	return stories, rules, nil
}

func decodeSteps(steps []flowStep) []domain.StoryEvent {
	events := make([]domain.StoryEvent, 0, len(steps))
	for _, step := range steps {
		switch {
		case step.Intent != "":
			events = append(events, domain.StoryEvent{Name: step.Intent, Type: domain.StoryEventUser})
		case step.Action != "":
			events = append(events, domain.StoryEvent{Name: step.Action, Type: domain.StoryEventAction})
		case step.ActiveLoop != "":
			events = append(events, domain.StoryEvent{Name: step.ActiveLoop, Type: domain.StoryEventForm})
		case len(step.SlotWasSet) > 0:
			for name, value := range step.SlotWasSet {
				events = append(events, domain.StoryEvent{Name: name, Type: domain.StoryEventSlot, Value: value})
			}
		}
	}
	return events
}

func encodeDomain(dom *corpussvc.DomainData) domainYAML {
	out := domainYAML{
		Version:  trainingFileVersion,
		Intents:  dom.Intents,
		Entities: dom.Entities,
		Actions:  dom.Actions,
		Forms:    dom.Forms,
	}
	if len(dom.Slots) > 0 {
		out.Slots = map[string]domainSlot{}
		for _, slot := range dom.Slots {
			var initial interface{}
			if len(slot.InitialValue) > 0 {
				_ = json.Unmarshal(slot.InitialValue, &initial)
			}
			out.Slots[slot.Name] = domainSlot{
				Type:                  string(slot.Type),
				InitialValue:          initial,
				AutoFill:              slot.AutoFill,
				Values:                slot.Values,
				InfluenceConversation: slot.InfluenceConversation,
			}
		}
	}
	if len(dom.Responses) > 0 {
		out.Responses = map[string][]domainResponse{}
		for name, variants := range dom.Responses {
			for _, v := range variants {
				resp := domainResponse{}
				if v.Text != nil {
					resp.Text = v.Text.Text
					resp.Image = v.Text.Image
					resp.Buttons = v.Text.Buttons
				} else {
					resp.Custom = v.Custom
				}
				out.Responses[name] = append(out.Responses[name], resp)
			}
		}
	}
	if dom.SessionConfig != nil {
		out.SessionConfig = &domainSessionConfig{
			SessionExpirationTime: dom.SessionConfig.SessionExpirationTime,
			CarryOverSlots:        dom.SessionConfig.CarryOverSlots,
		}
	}
	return out
}

func decodeDomain(raw []byte) (*corpussvc.DomainData, error) {
	var file domainYAML
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, apperr.Validation("Failed to parse domain.yml")
	}
	out := &corpussvc.DomainData{
		Intents:  file.Intents,
		Entities: file.Entities,
		Actions:  file.Actions,
		Forms:    file.Forms,
	}
	for name, spec := range file.Slots {
		slotType := domain.SlotType(spec.Type)
		if !slotType.Valid() {
			return nil, apperr.Newf(apperr.KindValidation, "Invalid slot type %s", spec.Type)
		}
		row := &domain.Slot{
			Name:                  name,
			Type:                  slotType,
			AutoFill:              spec.AutoFill,
			Values:                spec.Values,
			InfluenceConversation: spec.InfluenceConversation,
		}
		if spec.InitialValue != nil {
			if b, err := json.Marshal(spec.InitialValue); err == nil {
				row.InitialValue = datatypes.JSON(b)
			}
		}
		out.Slots = append(out.Slots, row)
	}
	if len(file.Responses) > 0 {
		out.Responses = map[string][]corpussvc.ResponseVariant{}
		for name, variants := range file.Responses {
			for _, v := range variants {
				variant := corpussvc.ResponseVariant{}
				if v.Custom != nil {
					variant.Custom = v.Custom
				} else {
					variant.Text = &domain.ResponseText{Text: v.Text, Image: v.Image, Buttons: v.Buttons}
				}
				out.Responses[name] = append(out.Responses[name], variant)
			}
		}
	}
	if file.SessionConfig != nil {
		out.SessionConfig = &domain.SessionConfig{
			SessionExpirationTime: file.SessionConfig.SessionExpirationTime,
			CarryOverSlots:        file.SessionConfig.CarryOverSlots,
		}
	}
	return out, nil
}

// annotateExample re-applies markdown entity annotations onto the stored
// plain text so the round trip through the file layout is lossless.
func annotateExample(text string, entities []domain.Entity) string {
	if len(entities) == 0 {
		return text
	}
	sorted := make([]domain.Entity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })
	for _, e := range sorted {
		if e.Start < 0 || e.End > len(text) || e.Start >= e.End {
			continue
		}
		text = text[:e.Start] + "[" + text[e.Start:e.End] + "](" + e.Entity + ")" + text[e.End:]
	}
	return text
}

// exampleList renders values as the dash-prefixed block the engine parses.
func exampleList(values []string) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString("- ")
		b.WriteString(v)
		b.WriteString("\n")
	}
	return b.String()
}

func splitExampleList(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeYAML(path string, v interface{}) error {
	encoded, err := yaml.Marshal(v)
	if err != nil {
		return apperr.Internal("encode training file", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return apperr.Internal("write training file", err)
	}
	return nil
}
