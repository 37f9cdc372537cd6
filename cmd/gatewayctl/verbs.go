package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"multigateway-api/app"
	"multigateway-api/models"
	"multigateway-api/services/billing"
	"multigateway-api/types"
)

type verbFlags struct {
	gateway        string
	amount         int64
	currency       string
	orderID        string
	description    string
	idempotencyKey string
	authorization  string
	token          string
	async          bool
	card           models.CreditCard
}

var verbHelp = map[models.Action]string{
	models.ActionPurchase:  "Authorize and capture an amount in one step",
	models.ActionAuthorize: "Place a hold for an amount",
	models.ActionCapture:   "Capture a previous authorization",
	models.ActionRefund:    "Refund a captured transaction",
	models.ActionVoid:      "Cancel a transaction before settlement",
	models.ActionStore:     "Vault a card at the processor",
	models.ActionUnstore:   "Remove a vaulted card",
	models.ActionVerify:    "Check a card without charging it",
}

func verbCmds(load appLoader) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(models.Actions))
	for _, action := range models.Actions {
		cmds = append(cmds, verbCmd(load, action))
	}
	return cmds
}

func verbCmd(load appLoader, action models.Action) *cobra.Command {
	var f verbFlags

	cmd := &cobra.Command{
		Use:   string(action),
		Short: verbHelp[action],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(action)
			if err != nil {
				return err
			}
			return withApp(load, func(a *app.App) error {
				if f.async {
					job, err := a.Billing.Enqueue(cmd.Context(), req)
					if err != nil {
						return err
					}
					return printJSON(cmd, map[string]string{"job_id": job.ID, "status": "queued"})
				}
				result, err := a.Billing.Execute(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.gateway, "gateway", "g", "", "gateway name (see 'gatewayctl gateways')")
	cmd.MarkFlagRequired("gateway")
	flags.StringVar(&f.orderID, "order-id", "", "merchant order id")
	flags.StringVar(&f.description, "description", "", "transaction description")
	flags.StringVar(&f.idempotencyKey, "idempotency-key", "", "replay-safe request key")
	flags.StringVar(&f.currency, "currency", "", "ISO 4217 currency (defaults per gateway)")

	if action.TakesAmount() {
		flags.Int64VarP(&f.amount, "amount", "a", 0, "amount in minor units (cents)")
	}
	if action.ReferencesAuthorization() {
		flags.StringVar(&f.authorization, "authorization", "", "authorization returned by an earlier call")
		flags.BoolVar(&f.async, "async", false, "queue the request for the worker")
	} else {
		flags.StringVar(&f.card.Number, "card", "", "card number")
		flags.IntVar(&f.card.Month, "month", 0, "expiry month")
		flags.IntVar(&f.card.Year, "year", 0, "expiry year (4 digits)")
		flags.StringVar(&f.card.VerificationValue, "cvv", "", "card verification value")
		flags.StringVar(&f.card.FirstName, "first-name", "", "cardholder first name")
		flags.StringVar(&f.card.LastName, "last-name", "", "cardholder last name")
	}
	if action == models.ActionPurchase || action == models.ActionAuthorize {
		flags.StringVar(&f.token, "token", "", "stored card token instead of --card")
	}

	return cmd
}

func (f *verbFlags) request(action models.Action) (billing.Request, error) {
	req := billing.Request{
		Gateway:        f.gateway,
		Action:         action,
		Amount:         f.amount,
		Authorization:  f.authorization,
		IdempotencyKey: f.idempotencyKey,
		Options: &types.TransactionOptions{
			OrderID:     f.orderID,
			Currency:    f.currency,
			Description: f.description,
		},
	}
	switch {
	case f.token != "" && f.card.Number != "":
		return req, fmt.Errorf("--card and --token are mutually exclusive")
	case f.token != "":
		req.Source = models.StoredToken(f.token)
	case f.card.Number != "":
		card := f.card
		req.Source = &card
	}
	return req, nil
}
