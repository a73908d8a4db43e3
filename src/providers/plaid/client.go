package plaid

import (
	"fmt"

	plaidgo "github.com/plaid/plaid-go/v41/plaid"
)

func NewClient(clientID, secret, env string) (*plaidgo.APIClient, error) {
	configuration := plaidgo.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaidgo.Sandbox)
	case "production":
		configuration.UseEnvironment(plaidgo.Production)
	default:
		return nil, fmt.Errorf("invalid Plaid environment: %s", env)
	}

	return plaidgo.NewAPIClient(configuration), nil
}
