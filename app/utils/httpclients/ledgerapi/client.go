package ledgerapi

import (
	"context"
	"fmt"

	"resty.dev/v3"

	"openlend.ai/position-cache/app/domain/ledger"
	"openlend.ai/position-cache/app/utils/httpclients"
	"openlend.ai/position-cache/config/environment_variables"
)

var LedgerRestyClient *resty.Client

func Init() {
	LedgerRestyClient = httpclients.NewClient("LedgerClient")
	LedgerRestyClient.SetBaseURL(environment_variables.EnvironmentVariables.LEDGER_API_URL)
}

type LedgerClient struct {
	BaseURL string
}

func NewLedgerClient() *LedgerClient {
	return &LedgerClient{
		BaseURL: environment_variables.EnvironmentVariables.LEDGER_API_URL,
	}
}

type balancesResponse struct {
	Subject    string `json:"subject"`
	Asset      string `json:"asset"`
	Collateral string `json:"collateral"`
	Debt       string `json:"debt"`
}

// ReadBalances implements ledger.Reader against the ledger HTTP API.
func (client *LedgerClient) ReadBalances(ctx context.Context, subject, asset string) (ledger.Balances, error) {
	var body balancesResponse
	resp, err := LedgerRestyClient.R().
		SetContext(ctx).
		SetResult(&body).
		SetPathParams(map[string]string{
			"subject": subject,
			"asset":   asset,
		}).
		Get("/v1/balances/{subject}/{asset}")
	if err != nil {
		return ledger.Balances{}, err
	}
	if resp.IsError() {
		return ledger.Balances{}, fmt.Errorf("ledger read failed: %s: %s", resp.Status(), resp.String())
	}
	return ledger.Balances{
		Collateral: body.Collateral,
		Debt:       body.Debt,
	}, nil
}
