package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Counterparty struct {
	UUID        uuid.UUID `json:"uuid"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name,omitempty"`
}

// DisplayedName prefers the user override when one is set.
func (c Counterparty) DisplayedName() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

type Transaction struct {
	UUID         uuid.UUID       `json:"uuid"`
	AccountUUID  uuid.UUID       `json:"account_uuid"`
	Time         time.Time       `json:"time"`
	Counterparty Counterparty    `json:"counterparty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Reference    string          `json:"reference"`
	CategoryUUID *uuid.UUID      `json:"category_uuid,omitempty"`
}
