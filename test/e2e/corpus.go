// Package e2e exercises the full retrieval pipeline over a synthetic legal
// corpus with known relevance judgments.
package e2e

import "fmt"

// CorpusDocument is one source document in the corpus. Each carries a unique
// signature phrase so queries can assert the right document comes back.
type CorpusDocument struct {
	Source   string
	Sections []string
}

// QueryTestCase pairs a query with the sources that must appear in the
// retrieved results.
type QueryTestCase struct {
	Query           string
	ExpectedSources []string
	Description     string
}

// Corpus holds documents and query test cases.
type Corpus struct {
	Documents []CorpusDocument
	TestCases []QueryTestCase
}

var corpusTopics = []struct {
	source  string
	phrase  string
	body    string
}{
	{"export-controls.txt", "dual-use goods export authorization", "The export of dual-use goods requires prior authorization from the competent national authority. Dual-use goods export authorization applies to items listed in Annex I of the regulation."},
	{"asset-freeze.txt", "asset freeze designated persons", "All funds and economic resources belonging to designated persons shall be frozen. The asset freeze designated persons regime prohibits making funds available directly or indirectly."},
	{"data-protection.txt", "personal data processing lawful basis", "Processing of personal data is lawful only where a lawful basis applies. Personal data processing lawful basis includes consent, contract, and legitimate interest."},
	{"merger-control.txt", "concentration notification turnover thresholds", "A concentration with a Union dimension must be notified before implementation. Concentration notification turnover thresholds are computed from the aggregate worldwide turnover of the undertakings concerned."},
	{"state-aid.txt", "state aid incompatible internal market", "Any aid granted by a Member State which distorts competition is incompatible. State aid incompatible internal market findings require recovery of the unlawful advantage."},
	{"consumer-rights.txt", "withdrawal period distance contracts", "The consumer may withdraw from a distance contract within fourteen days. The withdrawal period distance contracts rule starts on the day of delivery of the goods."},
	{"customs-tariff.txt", "tariff classification combined nomenclature", "Goods are classified according to the combined nomenclature. Tariff classification combined nomenclature decisions bind the customs authorities of all Member States."},
	{"vat-directive.txt", "taxable supply place of performance", "Value added tax is chargeable on each taxable supply. The taxable supply place of performance determines which Member State levies the tax."},
	{"employment-law.txt", "collective redundancies consultation obligation", "An employer contemplating collective redundancies shall consult worker representatives. The collective redundancies consultation obligation begins in good time before any notice is given."},
	{"environmental.txt", "emission allowances trading scheme", "Installations covered by the scheme must surrender allowances equal to verified emissions. The emission allowances trading scheme caps total emissions across the Union."},
}

// BuildCorpus returns the synthetic corpus plus one query test case per
// document, each keyed on that document's signature phrase.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for i, topic := range corpusTopics {
		doc := CorpusDocument{Source: topic.source}
		// Three sections per document: the signature body plus two filler
		// articles long enough to survive the minimum chunk length.
		doc.Sections = append(doc.Sections, topic.body)
		for j := 1; j <= 2; j++ {
			doc.Sections = append(doc.Sections, fmt.Sprintf(
				"Article %d lays down supplementary provisions on scope, definitions and entry into force of instrument number %d.", j, i+1))
		}
		c.Documents = append(c.Documents, doc)
		c.TestCases = append(c.TestCases, QueryTestCase{
			Query:           topic.phrase,
			ExpectedSources: []string{topic.source},
			Description:     topic.source,
		})
	}
	return c
}
