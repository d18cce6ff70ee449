package bench

import (
	"encoding/json"
	"fmt"

	"rpsbench/server/game"
	"rpsbench/server/llm"
)

// Trial is one sampled request/response for a Scenario, stored verbatim.
type Trial struct {
	Scenario game.Scenario
	Response string
	Logprobs []llm.TokenLogprob
}

type orderRecord struct {
	PromptOrder []game.Choice      `json:"prompt_order"`
	Response    string             `json:"response"`
	Logprobs    []llm.TokenLogprob `json:"logprobs"`
}

type trustRecord struct {
	ModelChoice game.Choice        `json:"model_choice"`
	HumanChoice game.Choice        `json:"human_choice"`
	Response    string             `json:"response"`
	Logprobs    []llm.TokenLogprob `json:"logprobs"`
}

func (t Trial) MarshalJSON() ([]byte, error) {
	lp := t.Logprobs
	if lp == nil {
		lp = []llm.TokenLogprob{}
	}
	switch t.Scenario.Variant {
	case game.Order:
		return json.Marshal(orderRecord{PromptOrder: t.Scenario.Order[:], Response: t.Response, Logprobs: lp})
	case game.Trust:
		return json.Marshal(trustRecord{
			ModelChoice: t.Scenario.ModelChoice,
			HumanChoice: t.Scenario.HumanChoice,
			Response:    t.Response,
			Logprobs:    lp,
		})
	}
	return nil, fmt.Errorf("trial: %w: %q", game.ErrUnknownVariant, t.Scenario.Variant)
}

func (t *Trial) UnmarshalJSON(b []byte) error {
	var probe struct {
		PromptOrder []game.Choice      `json:"prompt_order"`
		ModelChoice *game.Choice       `json:"model_choice"`
		HumanChoice *game.Choice       `json:"human_choice"`
		Response    string             `json:"response"`
		Logprobs    []llm.TokenLogprob `json:"logprobs"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	switch {
	case probe.PromptOrder != nil:
		if len(probe.PromptOrder) != 3 {
			return fmt.Errorf("trial: prompt_order has %d entries, want 3", len(probe.PromptOrder))
		}
		t.Scenario = game.Scenario{Variant: game.Order, Order: [3]game.Choice(probe.PromptOrder)}
	case probe.ModelChoice != nil && probe.HumanChoice != nil:
		t.Scenario = game.Scenario{Variant: game.Trust, ModelChoice: *probe.ModelChoice, HumanChoice: *probe.HumanChoice}
	default:
		return fmt.Errorf("trial: record has neither prompt_order nor model_choice/human_choice")
	}
	t.Response = probe.Response
	t.Logprobs = probe.Logprobs
	return nil
}
