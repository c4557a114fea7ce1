package rfi

import (
	"fmt"
	"strings"

	"github.com/tanq16/rfidrop/internal/utils"
)

const (
	TypeTBML          = "tbml"
	TypeControlChecks = "controlChecks"
)

type Option struct {
	ID    string
	Label string
	Value string
}

var catalog = map[string][]Option{
	TypeTBML: {
		{ID: "tbml-1", Label: "RFI-TBML-001 - Trade Based Money Laundering", Value: "tbml-001"},
		{ID: "tbml-2", Label: "RFI-TBML-002 - Invoice Manipulation", Value: "tbml-002"},
		{ID: "tbml-3", Label: "RFI-TBML-003 - Over/Under Invoicing", Value: "tbml-003"},
		{ID: "tbml-4", Label: "RFI-TBML-004 - Multiple Invoicing", Value: "tbml-004"},
		{ID: "tbml-5", Label: "RFI-TBML-005 - Falsely Described Goods", Value: "tbml-005"},
		{ID: "tbml-6", Label: "RFI-TBML-006 - Phantom Shipments", Value: "tbml-006"},
	},
	TypeControlChecks: {
		{ID: "cc-1", Label: "RFI-CC-001 - KYC Verification", Value: "cc-001"},
		{ID: "cc-2", Label: "RFI-CC-002 - AML Compliance Check", Value: "cc-002"},
		{ID: "cc-3", Label: "RFI-CC-003 - Sanctions Screening", Value: "cc-003"},
		{ID: "cc-4", Label: "RFI-CC-004 - PEP Screening", Value: "cc-004"},
		{ID: "cc-5", Label: "RFI-CC-005 - Transaction Monitoring", Value: "cc-005"},
		{ID: "cc-6", Label: "RFI-CC-006 - Risk Assessment", Value: "cc-006"},
	},
}

func UploadTypes() []string {
	return []string{TypeTBML, TypeControlChecks}
}

// NormalizeType maps loose spellings onto a canonical upload type, or "" if unknown
func NormalizeType(uploadType string) string {
	switch strings.ToLower(strings.TrimSpace(uploadType)) {
	case "tbml":
		return TypeTBML
	case "controlchecks", "control-checks", "control_checks", "cc":
		return TypeControlChecks
	}
	return ""
}

func Options(uploadType string) ([]Option, error) {
	options, ok := catalog[NormalizeType(uploadType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", utils.ErrUnknownUploadType, uploadType)
	}
	return options, nil
}

// Resolve returns the catalog entry for an RFI given by value or ID
func Resolve(uploadType, rfiID string) (Option, error) {
	options, err := Options(uploadType)
	if err != nil {
		return Option{}, err
	}
	for _, option := range options {
		if strings.EqualFold(option.Value, rfiID) || strings.EqualFold(option.ID, rfiID) {
			return option, nil
		}
	}
	return Option{}, fmt.Errorf("%w: %q is not a %s RFI", utils.ErrUnknownRFI, rfiID, NormalizeType(uploadType))
}
