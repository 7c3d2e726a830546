package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/amirasaad/checkoutflow/pkg/checkout"
	"github.com/amirasaad/checkoutflow/pkg/money"
	"github.com/amirasaad/checkoutflow/pkg/pricing"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EE6FF8"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7E57C2"))
	receiptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#04B575")).
			Padding(1, 2)
)

// huhPrompter renders the wizard with huh forms.
type huhPrompter struct {
	out   io.Writer
	width int
}

func newHuhPrompter(out io.Writer) *huhPrompter {
	return &huhPrompter{out: out, width: 60}
}

func (p *huhPrompter) run(groups ...*huh.Group) error {
	return huh.NewForm(groups...).WithWidth(p.width).WithShowHelp(false).Run()
}

func (p *huhPrompter) Amount(tokenPrice money.Money) (string, error) {
	var raw string
	err := p.run(huh.NewGroup(
		huh.NewInput().
			Key("amount").
			Title("How much do you want to spend?").
			Description(fmt.Sprintf("One token costs %s", tokenPrice.Display())).
			Placeholder(tokenPrice.Decimal().StringFixed(int32(tokenPrice.Currency().Decimals))).
			Value(&raw).
			Validate(func(s string) error {
				if _, err := money.Parse(s, tokenPrice.Code()); err != nil {
					return fmt.Errorf("enter an amount like 100.00")
				}
				return nil
			}),
	))
	return strings.TrimSpace(raw), err
}

func (p *huhPrompter) Funding(s checkout.Session, purchase pricing.TokenPurchase) (string, error) {
	options := make([]huh.Option[string], 0, len(s.Sources)+2)
	for _, src := range s.Sources {
		label := fmt.Sprintf("%s (%s)", src.Label, src.Balance.Display())
		if !src.IsEligible(s.Quote) {
			label += " - unavailable"
		}
		options = append(options, huh.NewOption(label, src.ID))
	}
	options = append(options,
		huh.NewOption("Change amount", choiceChangeAmount),
		huh.NewOption("Cancel", choiceCancel),
	)

	var choice string
	err := p.run(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("Pay %s for %d tokens with", purchase.TotalCost.Display(), purchase.TokenCount)).
			Options(options...).
			Value(&choice),
	))
	return choice, err
}

func (p *huhPrompter) Review(s checkout.Session, purchase pricing.TokenPurchase) (reviewChoice, error) {
	choice := reviewConfirm
	err := p.run(huh.NewGroup(
		huh.NewNote().
			Title("Review your purchase").
			Description(summary(s, purchase)),
		huh.NewSelect[reviewChoice]().
			Options(
				huh.NewOption("Confirm purchase", reviewConfirm),
				huh.NewOption("Choose another payment method", reviewBack),
				huh.NewOption("Cancel", reviewCancel),
			).
			Value(&choice),
	))
	return choice, err
}

func (p *huhPrompter) Processing(settle func()) error {
	return spinner.New().
		Title("Processing payment...").
		Action(settle).
		Run()
}

func (p *huhPrompter) Outcome(s checkout.Session) (outcomeChoice, error) {
	reason := s.FailureReason()
	msg := "The payment did not go through."
	if s.Result != nil && s.Result.Message != "" {
		msg = s.Result.Message
	}
	if reason.RequiresFundingChange() {
		msg += "\nRetrying lets you pick another payment method."
	}

	choice := outcomeRetry
	err := p.run(huh.NewGroup(
		huh.NewNote().
			Title(fmt.Sprintf("Payment failed (%s)", reason)).
			Description(msg),
		huh.NewSelect[outcomeChoice]().
			Options(
				huh.NewOption("Try again", outcomeRetry),
				huh.NewOption("Cancel", outcomeCancel),
			).
			Value(&choice),
	))
	return choice, err
}

func (p *huhPrompter) Receipt(s checkout.Session, purchase pricing.TokenPurchase) {
	body := strings.Join([]string{
		titleStyle.Render("Purchase complete"),
		"",
		summary(s, purchase),
		"",
		mutedStyle.Render("Confirmation " + s.Result.ConfirmationID),
	}, "\n")
	_, _ = fmt.Fprintln(p.out, receiptStyle.Render(body))
}

func (p *huhPrompter) Notice(msg string) {
	_, _ = fmt.Fprintln(p.out, noticeStyle.Render(msg))
}

func summary(s checkout.Session, purchase pricing.TokenPurchase) string {
	lines := []string{
		fmt.Sprintf("Tokens:    %d x %s", purchase.TokenCount, purchase.TokenPrice.Display()),
		fmt.Sprintf("Total:     %s", s.Quote.Total.Display()),
	}
	if purchase.Remainder.IsPositive() {
		lines = append(lines, fmt.Sprintf("Unspent:   %s", purchase.Remainder.Display()))
	}
	if s.SelectedFunding != nil {
		lines = append(lines, fmt.Sprintf("Paid with: %s", s.SelectedFunding.Label))
	}
	return strings.Join(lines, "\n")
}
