// Package e2e provides end-to-end tests that run the full pipeline over a
// corpus of synthetic contracts and assert retrieval quality per query.
package e2e

import (
	"fmt"
	"strings"
)

// ContractDoc is one synthetic contract in the corpus. Filename doubles as
// the stable key for looking up the document ID after ingestion.
type ContractDoc struct {
	Filename string
	Content  string
}

// QueryCase defines a question and the filename(s) whose chunks must appear
// in the retrieval results. At least one expected document must be present.
type QueryCase struct {
	Query             string
	ExpectedFilenames []string
	Description       string
}

// Corpus holds contracts and query cases for end-to-end tests.
type Corpus struct {
	Documents []ContractDoc
	Cases     []QueryCase
}

// clauseTemplate carries a distinctive phrase so each query can assert the
// right contract surfaces. The phrase appears verbatim in exactly one corpus
// document.
type clauseTemplate struct {
	kind    string
	phrase  string
	clauses []string
}

var templates = []clauseTemplate{
	{
		kind:   "nda",
		phrase: "survive for a period of five years after expiration",
		clauses: []string{
			"1. Confidential Information. Confidential Information means any non-public business, technical, or financial information disclosed by either party.",
			"2. Obligations. The receiving party shall protect Confidential Information with at least the same degree of care it uses for its own secrets.",
			"3. Term. The confidentiality obligations shall survive for a period of five years after expiration of this agreement.",
		},
	},
	{
		kind:   "services",
		phrase: "invoices are payable within forty five days of receipt",
		clauses: []string{
			"1. Services. The contractor shall perform the services described in each statement of work.",
			"2. Payment. All invoices are payable within forty five days of receipt. Late payments accrue interest at one percent per month.",
			"3. Termination. Either party may terminate this agreement with thirty days written notice to the other party.",
		},
	},
	{
		kind:   "license",
		phrase: "non-exclusive non-transferable license to use the software",
		clauses: []string{
			"1. Grant. Licensor grants licensee a non-exclusive non-transferable license to use the software for internal business purposes.",
			"2. Restrictions. Licensee shall not reverse engineer, decompile, or sublicense the software.",
			"3. Fees. License fees are due annually in advance and are non-refundable.",
		},
	},
	{
		kind:   "employment",
		phrase: "all work product created during the term belongs to the company",
		clauses: []string{
			"1. Position. The employee shall serve in the position described in the offer letter.",
			"2. Work Product. All work product created during the term belongs to the company, including inventions and copyrightable works.",
			"3. Non-Solicitation. For twelve months after termination the employee shall not solicit company customers or employees.",
		},
	},
	{
		kind:   "lease",
		phrase: "security deposit equal to two months of base rent",
		clauses: []string{
			"1. Premises. Landlord leases to tenant the premises described in exhibit A.",
			"2. Deposit. Tenant shall pay a security deposit equal to two months of base rent upon execution.",
			"3. Maintenance. Tenant is responsible for routine maintenance; landlord is responsible for structural repairs.",
		},
	},
	{
		kind:   "supply",
		phrase: "deliver the goods within ten business days of each purchase order",
		clauses: []string{
			"1. Orders. Buyer may submit purchase orders referencing this agreement.",
			"2. Delivery. Supplier shall deliver the goods within ten business days of each purchase order.",
			"3. Warranty. Supplier warrants the goods against defects for one year from delivery.",
		},
	},
}

// BuildCorpus returns n synthetic contracts cycling through the templates,
// with one query case per template keyed to its signature phrase.
func BuildCorpus(n int) *Corpus {
	docs := make([]ContractDoc, 0, n)
	for i := 0; i < n; i++ {
		tpl := templates[i%len(templates)]
		filename := fmt.Sprintf("%s_%03d.txt", tpl.kind, i)
		var b strings.Builder
		fmt.Fprintf(&b, "AGREEMENT %03d\n\n", i)
		for _, clause := range tpl.clauses {
			b.WriteString(clause)
			b.WriteString("\n\n")
		}
		// Padding clauses keep documents from being near-duplicates.
		fmt.Fprintf(&b, "%d. Notices. Notices under agreement %03d shall be sent to the addresses on file.\n\n", len(tpl.clauses)+1, i)
		fmt.Fprintf(&b, "%d. Governing Law. This agreement %03d is governed by the laws of the agreed jurisdiction.\n", len(tpl.clauses)+2, i)
		docs = append(docs, ContractDoc{Filename: filename, Content: b.String()})
	}

	cases := make([]QueryCase, 0, len(templates))
	for _, tpl := range templates {
		expected := []string{}
		for _, d := range docs {
			if strings.Contains(d.Content, tpl.phrase) {
				expected = append(expected, d.Filename)
			}
		}
		if len(expected) == 0 {
			continue
		}
		cases = append(cases, QueryCase{
			Query:             tpl.phrase,
			ExpectedFilenames: expected,
			Description:       tpl.kind + " signature phrase",
		})
	}
	// Paraphrased queries exercise the lexical side without verbatim overlap
	// of the full phrase.
	cases = append(cases,
		QueryCase{
			Query:             "how long do confidentiality obligations last",
			ExpectedFilenames: filenamesOfKind(docs, "nda"),
			Description:       "paraphrased confidentiality duration",
		},
		QueryCase{
			Query:             "payment deadline for invoices",
			ExpectedFilenames: filenamesOfKind(docs, "services"),
			Description:       "paraphrased payment terms",
		},
	)
	return &Corpus{Documents: docs, Cases: cases}
}

func filenamesOfKind(docs []ContractDoc, kind string) []string {
	var out []string
	for _, d := range docs {
		if strings.HasPrefix(d.Filename, kind+"_") {
			out = append(out, d.Filename)
		}
	}
	return out
}
