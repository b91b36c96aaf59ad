package editor

import (
	"fmt"

	"github.com/dgallion1/redraft/internal/config"
)

// NewClients builds the backend list in configured preference order.
func NewClients(cfg config.Config) ([]Client, error) {
	var clients []Client
	for _, name := range cfg.ModelOrder {
		switch name {
		case "anthropic":
			clients = append(clients, NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel))
		case "openai":
			clients = append(clients, NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel))
		case "relay":
			clients = append(clients, NewRelayClient(cfg.RelayURL, cfg.RelayModel, cfg.RelayAPIKey))
		default:
			return nil, fmt.Errorf("unknown backend %q in model order", name)
		}
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no editing backends configured")
	}
	return clients, nil
}
