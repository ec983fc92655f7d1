package slcatalog

import "encoding/xml"

// Document is one full Preparations publication. ReleaseDate is carried as an
// attribute on the root element.
type Document struct {
	XMLName      xml.Name      `xml:"Preparations"`
	ReleaseDate  string        `xml:"ReleaseDate,attr"`
	Preparations []Preparation `xml:"Preparation"`
}

// Preparation is one drug family with its packs and limitations.
type Preparation struct {
	SwissmedicNo5 string `xml:"SwissmedicNo5"`
	NameDe        string `xml:"NameDe"`
	NameFr        string `xml:"NameFr"`
	NameIt        string `xml:"NameIt"`
	AtcCode       string `xml:"AtcCode"`
	OrgGenCode    string `xml:"OrgGenCode"`

	Substances  []Substance  `xml:"Substances>Substance"`
	Packs       []Pack       `xml:"Packs>Pack"`
	Limitations []Limitation `xml:"Limitations>Limitation"`
	ItCodes     []ItCode     `xml:"ItCodes>ItCode"`
}

type Substance struct {
	DescriptionLa string `xml:"DescriptionLa"`
	Quantity      string `xml:"Quantity"`
	QuantityUnit  string `xml:"QuantityUnit"`
}

type Pack struct {
	GTIN          string `xml:"GTIN"`
	SwissmedicNo8 string `xml:"SwissmedicNo8"`
	BagDossierNo  string `xml:"BagDossierNo"`
	DescriptionDe string `xml:"DescriptionDe"`

	Prices      Prices       `xml:"Prices"`
	Limitations []Limitation `xml:"Limitations>Limitation"`
}

type Prices struct {
	PublicPrice    Price `xml:"PublicPrice"`
	ExFactoryPrice Price `xml:"ExFactoryPrice"`
}

type Price struct {
	Price         string `xml:"Price"`
	ValidFromDate string `xml:"ValidFromDate"`
}

// Limitation is one limitation block. Indication codes may be present in
// machine-readable form in IndicationsCodes or PmIndications; older
// publications carry them only inside the prose.
type Limitation struct {
	LimitationCode   string `xml:"LimitationCode"`
	LimitationType   string `xml:"LimitationType"`
	LimitationNiveau string `xml:"LimitationNiveau"`
	DescriptionDe    string `xml:"DescriptionDe"`
	DescriptionFr    string `xml:"DescriptionFr"`
	DescriptionIt    string `xml:"DescriptionIt"`
	ValidFromDate    string `xml:"ValidFromDate"`
	ValidThruDate    string `xml:"ValidThruDate"`

	IndicationsCodes []CodeRef `xml:"IndicationsCodes>IndicationsCode"`
	PmIndications    []CodeRef `xml:"PmIndications>PmIndication"`
}

type CodeRef struct {
	Code string `xml:"Code,attr"`
}

// ItCode groups limitations at the therapeutic-index level. These are parsed
// but their limitations never reach the deduplicated text tables.
type ItCode struct {
	Limitations []Limitation `xml:"Limitations>Limitation"`
}
