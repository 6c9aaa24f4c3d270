// Package nationality maps nationality codes and names onto continent groups.
package nationality

import "strings"

const (
	Asia        = "ASIA"
	Europe      = "EUROPE"
	America     = "AMERICA"
	Oceania     = "OCEANIA"
	Africa      = "AFRICA"
	AsiaOceania = "ASIA_OCEANIA"
	Other       = "OTHER"
	All         = "ALL"
)

type rule struct {
	continent string
	members   []string
}

// Evaluated in order: "NGA" is listed under both Europe (Nga = Russia) and Africa
// (Nigeria), and the first match wins.
var rules = []rule{
	{Asia, []string{
		"CHN", "CHINA", "TRUNG QUỐC", "JPN", "JAPAN", "NHẬT BẢN", "KOR", "KOREA", "HÀN QUỐC",
		"THA", "THAILAND", "THÁI LAN", "VNM", "VIETNAM", "VIỆT NAM", "MYS", "MALAYSIA",
		"SGP", "SINGAPORE", "IDN", "INDONESIA", "PHL", "PHILIPPINES", "IND", "INDIA", "ẤN ĐỘ",
		"TWN", "TAIWAN", "ĐÀI LOAN", "HKG", "HONG KONG", "MAC", "MACAU", "LAO", "LAOS", "LÀO",
		"KHM", "CAMBODIA", "CAMPUCHIA", "MMR", "MYANMAR", "BGD", "BANGLADESH", "PAK", "PAKISTAN",
		"NPL", "NEPAL", "LKA", "SRI LANKA", "MNG", "MONGOLIA", "MÔNG CỔ",
	}},
	{Europe, []string{
		"GBR", "UK", "ANH", "FRA", "FRANCE", "PHÁP", "DEU", "GERMANY", "ĐỨC",
		"ITA", "ITALY", "Ý", "ESP", "SPAIN", "TÂY BAN NHA", "NLD", "NETHERLANDS", "HÀ LAN",
		"BEL", "BELGIUM", "BỈ", "CHE", "SWITZERLAND", "THỤY SĨ", "AUT", "AUSTRIA", "ÁO",
		"SWE", "SWEDEN", "THỤY ĐIỂN", "NOR", "NORWAY", "NA UY", "DNK", "DENMARK", "ĐAN MẠCH",
		"FIN", "FINLAND", "PHẦN LAN", "POL", "POLAND", "BA LAN", "CZE", "CZECH", "SÉC",
		"RUS", "RUSSIA", "NGA", "UKR", "UKRAINE", "PRT", "PORTUGAL", "BỒ ĐÀO NHA",
		"GRC", "GREECE", "HY LẠP", "IRL", "IRELAND", "AI LEN",
	}},
	{America, []string{
		"USA", "US", "MỸ", "HOA KỲ", "CAN", "CANADA", "MEX", "MEXICO",
		"BRA", "BRAZIL", "ARG", "ARGENTINA", "CHL", "CHILE", "COL", "COLOMBIA",
		"PER", "PERU", "VEN", "VENEZUELA", "ECU", "ECUADOR", "CUB", "CUBA",
	}},
	{Oceania, []string{
		"AUS", "AUSTRALIA", "ÚC", "NZL", "NEW ZEALAND", "TÂN TÂY LAN",
		"FJI", "FIJI", "PNG", "PAPUA NEW GUINEA",
	}},
	{Africa, []string{
		"ZAF", "SOUTH AFRICA", "NAM PHI", "EGY", "EGYPT", "AI CẬP",
		"NGA", "NIGERIA", "KEN", "KENYA", "MAR", "MOROCCO", "MA RỐC",
		"TUN", "TUNISIA", "GHA", "GHANA", "ETH", "ETHIOPIA",
	}},
}

var lookup = buildLookup()

func buildLookup() map[string]string {
	m := make(map[string]string)
	for _, r := range rules {
		for _, c := range r.members {
			if _, seen := m[c]; !seen {
				m[c] = r.continent
			}
		}
	}
	return m
}

func normalize(nat string) string {
	return strings.ToUpper(strings.TrimSpace(nat))
}

// Continent returns the continent group for a nationality, or Other when unmatched.
func Continent(nat string) string {
	if c, ok := lookup[normalize(nat)]; ok {
		return c
	}
	return Other
}

// Known reports whether the nationality appears in any continent rule.
func Known(nat string) bool {
	_, ok := lookup[normalize(nat)]
	return ok
}

// Matches reports whether nat belongs to any of the requested groups.
// An empty group list or one containing All matches everything.
func Matches(nat string, groups []string) bool {
	if len(groups) == 0 {
		return true
	}
	c := Continent(nat)
	for _, g := range groups {
		switch strings.ToUpper(strings.TrimSpace(g)) {
		case All:
			return true
		case AsiaOceania:
			if c == Asia || c == Oceania {
				return true
			}
		case c:
			return true
		}
	}
	return false
}

// Groups lists the selectable continent filters in display order.
func Groups() []string {
	return []string{All, Asia, Europe, America, Oceania, Africa, AsiaOceania, Other}
}
