package model

import (
	"fmt"
	"strings"
)

// Country is one entry of the closed registry of markets the boards serve.
// indeedDomain is the country code Indeed prefixes its host with ("www" for
// the US); glassdoorHost is the regional Glassdoor host, empty when
// Glassdoor does not operate in that market.
type Country struct {
	Name          string `json:"name" bson:"name"`
	aliases       []string
	indeedDomain  string
	glassdoorHost string
}

// Synthetic members. WORLDWIDE is the LinkedIn fallback when no market is
// given; USCanada is a ZipRecruiter-internal sentinel and is never accepted
// from user input nor rendered in display locations.
var (
	Worldwide = Country{Name: "worldwide", indeedDomain: "www"}
	USCanada  = Country{Name: "usa/ca", indeedDomain: "www"}
)

var countryRegistry = []Country{
	{Name: "argentina", indeedDomain: "ar"},
	{Name: "australia", aliases: []string{"au"}, indeedDomain: "au", glassdoorHost: "www.glassdoor.com.au"},
	{Name: "austria", aliases: []string{"at"}, indeedDomain: "at", glassdoorHost: "www.glassdoor.at"},
	{Name: "bahrain", indeedDomain: "bh"},
	{Name: "belgium", aliases: []string{"be"}, indeedDomain: "be", glassdoorHost: "fr.glassdoor.be"},
	{Name: "brazil", aliases: []string{"br"}, indeedDomain: "br", glassdoorHost: "www.glassdoor.com.br"},
	{Name: "canada", aliases: []string{"ca"}, indeedDomain: "ca", glassdoorHost: "www.glassdoor.ca"},
	{Name: "chile", indeedDomain: "cl"},
	{Name: "china", indeedDomain: "cn"},
	{Name: "colombia", indeedDomain: "co"},
	{Name: "costa rica", indeedDomain: "cr"},
	{Name: "czech republic", aliases: []string{"czechia"}, indeedDomain: "cz"},
	{Name: "denmark", indeedDomain: "dk"},
	{Name: "ecuador", indeedDomain: "ec"},
	{Name: "egypt", indeedDomain: "eg"},
	{Name: "finland", indeedDomain: "fi"},
	{Name: "france", aliases: []string{"fr"}, indeedDomain: "fr", glassdoorHost: "www.glassdoor.fr"},
	{Name: "germany", aliases: []string{"de"}, indeedDomain: "de", glassdoorHost: "www.glassdoor.de"},
	{Name: "greece", indeedDomain: "gr"},
	{Name: "hong kong", aliases: []string{"hk"}, indeedDomain: "hk", glassdoorHost: "www.glassdoor.com.hk"},
	{Name: "hungary", indeedDomain: "hu"},
	{Name: "india", aliases: []string{"in"}, indeedDomain: "in", glassdoorHost: "www.glassdoor.co.in"},
	{Name: "indonesia", indeedDomain: "id"},
	{Name: "ireland", aliases: []string{"ie"}, indeedDomain: "ie", glassdoorHost: "www.glassdoor.ie"},
	{Name: "israel", indeedDomain: "il"},
	{Name: "italy", aliases: []string{"it"}, indeedDomain: "it", glassdoorHost: "www.glassdoor.it"},
	{Name: "japan", indeedDomain: "jp"},
	{Name: "kuwait", indeedDomain: "kw"},
	{Name: "luxembourg", indeedDomain: "lu"},
	{Name: "malaysia", indeedDomain: "malaysia"},
	{Name: "mexico", aliases: []string{"mx"}, indeedDomain: "mx", glassdoorHost: "www.glassdoor.com.mx"},
	{Name: "morocco", indeedDomain: "ma"},
	{Name: "netherlands", aliases: []string{"nl"}, indeedDomain: "nl", glassdoorHost: "www.glassdoor.nl"},
	{Name: "new zealand", aliases: []string{"nz"}, indeedDomain: "nz", glassdoorHost: "www.glassdoor.co.nz"},
	{Name: "nigeria", indeedDomain: "ng"},
	{Name: "norway", indeedDomain: "no"},
	{Name: "oman", indeedDomain: "om"},
	{Name: "pakistan", indeedDomain: "pk"},
	{Name: "panama", indeedDomain: "pa"},
	{Name: "peru", indeedDomain: "pe"},
	{Name: "philippines", indeedDomain: "ph"},
	{Name: "poland", indeedDomain: "pl"},
	{Name: "portugal", indeedDomain: "pt"},
	{Name: "qatar", indeedDomain: "qa"},
	{Name: "romania", indeedDomain: "ro"},
	{Name: "saudi arabia", indeedDomain: "sa"},
	{Name: "singapore", aliases: []string{"sg"}, indeedDomain: "sg", glassdoorHost: "www.glassdoor.sg"},
	{Name: "south africa", indeedDomain: "za"},
	{Name: "south korea", indeedDomain: "kr"},
	{Name: "spain", aliases: []string{"es"}, indeedDomain: "es", glassdoorHost: "www.glassdoor.es"},
	{Name: "sweden", indeedDomain: "se"},
	{Name: "switzerland", aliases: []string{"ch"}, indeedDomain: "ch", glassdoorHost: "www.glassdoor.ch"},
	{Name: "taiwan", indeedDomain: "tw"},
	{Name: "thailand", indeedDomain: "th"},
	{Name: "turkey", indeedDomain: "tr"},
	{Name: "ukraine", indeedDomain: "ua"},
	{Name: "united arab emirates", aliases: []string{"uae"}, indeedDomain: "ae"},
	{Name: "uk", aliases: []string{"united kingdom", "gb"}, indeedDomain: "uk", glassdoorHost: "www.glassdoor.co.uk"},
	{Name: "usa", aliases: []string{"us", "united states"}, indeedDomain: "www", glassdoorHost: "www.glassdoor.com"},
	{Name: "uruguay", indeedDomain: "uy"},
	{Name: "venezuela", indeedDomain: "ve"},
	{Name: "vietnam", indeedDomain: "vn"},
}

// USA is the default market for ScraperInput.
var USA = mustCountry("usa")

func mustCountry(name string) Country {
	c, err := CountryFromString(name)
	if err != nil {
		panic(err)
	}
	return c
}

// CountryFromString resolves a user-facing country name or alias. The
// synthetic members are not part of the accepted surface.
func CountryFromString(s string) (Country, error) {
	token := strings.ToLower(strings.TrimSpace(s))
	if token == "worldwide" {
		return Worldwide, nil
	}
	for _, c := range countryRegistry {
		if c.Name == token {
			return c, nil
		}
		for _, a := range c.aliases {
			if a == token {
				return c, nil
			}
		}
	}
	return Country{}, fmt.Errorf("invalid country %q", s)
}

// IndeedDomain returns the host prefix Indeed uses for this market and the
// upper-cased API country code ("www", "US" for the USA).
func (c Country) IndeedDomain() (subdomain, apiCode string) {
	d := c.indeedDomain
	if d == "" {
		d = "www"
	}
	code := d
	if d == "www" {
		code = "us"
	}
	return d, strings.ToUpper(code)
}

// GlassdoorHost returns the regional Glassdoor host. The second return is
// false for markets Glassdoor does not serve.
func (c Country) GlassdoorHost() (string, bool) {
	return c.glassdoorHost, c.glassdoorHost != ""
}

// IsWorldwide reports whether this is the synthetic LinkedIn fallback.
func (c Country) IsWorldwide() bool { return c.Name == Worldwide.Name }

// displayToken renders the country for DisplayLocation: USA and UK
// uppercased, synthetic members suppressed, everything else title-cased.
func (c Country) displayToken() string {
	switch c.Name {
	case "usa", "uk":
		return strings.ToUpper(c.Name)
	case Worldwide.Name, USCanada.Name:
		return ""
	}
	parts := strings.Fields(c.Name)
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
