package dialogue

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Placeholders used when the caller metadata omits a value.
const (
	DefaultAgentName = "<AGENT NAME>"
	DefaultCompany   = "<COMPANY NAME>"
	DefaultActDate   = "<ACT DATE>"
	DefaultActAmount = "<ACT AMOUNT>"
	DefaultDebtSum   = "<DEBT SUM>"
)

// CallerInfo is the per-turn metadata describing the call.
type CallerInfo struct {
	AgentName string `mapstructure:"agent_name"`
	Company   string `mapstructure:"company"`
	ActDate   string `mapstructure:"act_date"`
	ActAmount string `mapstructure:"act_amount"`
	DebtSum   string `mapstructure:"debt_sum"`
}

// DecodeCaller reads CallerInfo from turn metadata. Numbers are accepted
// for string fields; unknown keys are ignored and missing ones get placeholders.
func DecodeCaller(meta map[string]any) (CallerInfo, error) {
	var info CallerInfo
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &info,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return CallerInfo{}, err
	}
	if err := decoder.Decode(meta); err != nil {
		return CallerInfo{}, fmt.Errorf("invalid caller metadata: %w", err)
	}
	fill(&info.AgentName, DefaultAgentName)
	fill(&info.Company, DefaultCompany)
	fill(&info.ActDate, DefaultActDate)
	fill(&info.ActAmount, DefaultActAmount)
	fill(&info.DebtSum, DefaultDebtSum)
	return info, nil
}

func fill(field *string, def string) {
	if *field == "" {
		*field = def
	}
}
