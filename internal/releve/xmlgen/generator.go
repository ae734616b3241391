// Package xmlgen serializes a finalized transmission to the RL-24 XML
// format and validates generated artifacts against the format's structural
// rules.
package xmlgen

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	releve "garderie-cloud/internal/releve/domain"
)

// xmlHeader is the document declaration emitted before the root element.
const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

type xmlDocument struct {
	XMLName xml.Name    `xml:"TransmissionRL24"`
	Header  xmlEntete   `xml:"Entete"`
	Slips   []xmlSlip   `xml:"ReleveR24"`
	Summary xmlSommaire `xml:"Sommaire"`
}

type xmlEntete struct {
	TaxYear      int    `xml:"AnneeImposition"`
	Sequence     string `xml:"NoSequence"`
	PreparerID   string `xml:"NoPreparateur"`
	ProviderName string `xml:"NomFournisseur"`
	ProviderNEQ  string `xml:"NEQ"`
	AddressLine1 string `xml:"Adresse>Ligne1"`
	City         string `xml:"Adresse>Ville"`
	Province     string `xml:"Adresse>Province"`
	PostalCode   string `xml:"Adresse>CodePostal"`
}

type xmlSlip struct {
	Number         int     `xml:"NoReleve,attr"`
	TypeCode       string  `xml:"CodeType,attr"`
	RecipientName  string  `xml:"NomBeneficiaire"`
	RecipientSIN   string  `xml:"NAS"`
	ChildName      string  `xml:"NomEnfant"`
	ChildBirthDate string  `xml:"DateNaissance"`
	ServiceStart   string  `xml:"DebutService"`
	ServiceEnd     string  `xml:"FinService"`
	BoxA           int     `xml:"CaseA"`
	BoxB           float64 `xml:"CaseB"`
	BoxC           float64 `xml:"CaseC"`
	BoxD           float64 `xml:"CaseD"`
	BoxE           float64 `xml:"CaseE"`
}

type xmlSommaire struct {
	SlipCount         int     `xml:"NbReleves"`
	ParticipantCount  int     `xml:"NbEnfants"`
	TotalDays         int     `xml:"TotalCaseA"`
	TotalPaid         float64 `xml:"TotalCaseB"`
	TotalEligible     float64 `xml:"TotalCaseC"`
	TotalContribution float64 `xml:"TotalCaseD"`
	TotalNet          float64 `xml:"TotalCaseE"`
}

// Generator builds RL-24 XML artifacts.
type Generator struct{}

// NewGenerator constructs a generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate serializes a transmission and its ordered slips. Slips must
// already be numbered; the generator does not reorder or renumber.
func (g *Generator) Generate(tx *releve.Transmission, slips []releve.Slip) ([]byte, error) {
	if tx == nil {
		return nil, releve.ErrNilTransmission
	}
	if slips == nil {
		return nil, releve.ErrNilSlips
	}
	if len(slips) > releve.MaxSlipsPerFile {
		return nil, fmt.Errorf("xmlgen: %d slips exceed the per-file maximum of %d", len(slips), releve.MaxSlipsPerFile)
	}

	doc := xmlDocument{
		Header: xmlEntete{
			TaxYear:      tx.TaxYear,
			Sequence:     fmt.Sprintf("%0*d", releve.FilenameSequenceWidth, tx.Sequence),
			PreparerID:   tx.PreparerID,
			ProviderName: truncate(tx.ProviderName, releve.XMLMaxNameLength),
			ProviderNEQ:  tx.ProviderNEQ,
			AddressLine1: truncate(tx.ProviderAddress.Line1, releve.XMLMaxAddressLineWidth),
			City:         truncate(tx.ProviderAddress.City, releve.XMLMaxAddressLineWidth),
			Province:     tx.ProviderAddress.Province,
			PostalCode:   tx.ProviderAddress.PostalCode,
		},
		Summary: xmlSommaire{
			SlipCount:         tx.SlipCount,
			ParticipantCount:  tx.ParticipantCount,
			TotalDays:         tx.TotalDays,
			TotalPaid:         tx.TotalPaid,
			TotalEligible:     tx.TotalEligible,
			TotalContribution: tx.TotalContribution,
			TotalNet:          tx.TotalNet,
		},
	}
	for _, s := range slips {
		doc.Slips = append(doc.Slips, xmlSlip{
			Number:         s.SlipNumber,
			TypeCode:       s.TypeCode,
			RecipientName:  truncate(s.RecipientName, releve.XMLMaxNameLength),
			RecipientSIN:   s.RecipientSIN,
			ChildName:      truncate(s.ChildName, releve.XMLMaxNameLength),
			ChildBirthDate: s.ChildBirthDate.Format("2006-01-02"),
			ServiceStart:   s.ServiceStart.Format("2006-01-02"),
			ServiceEnd:     s.ServiceEnd.Format("2006-01-02"),
			BoxA:           s.DaysOfCare,
			BoxB:           s.AmountPaid,
			BoxC:           s.Eligible,
			BoxD:           s.Contribution,
			BoxE:           s.NetEligible,
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("xmlgen: marshal: %w", err)
	}
	return append([]byte(xmlHeader), append(body, '\n')...), nil
}

// WriteFile serializes and persists the artifact, creating the per-tax-year
// directory when missing.
func (g *Generator) WriteFile(path string, tx *releve.Transmission, slips []releve.Slip) error {
	data, err := g.Generate(tx, slips)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("xmlgen: create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("xmlgen: write %s: %w", path, err)
	}
	return nil
}

// truncate caps s at max characters. The cut lands on a rune boundary;
// accented names must never pick up a replacement character.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
