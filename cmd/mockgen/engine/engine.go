package engine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"staytrack/internal/entry"
	"staytrack/internal/tableio"
)

type GeneratorConfig struct {
	Scenario     string // "mild", "labor" or "churn"
	Distribution string // "uniform" or "weibull"
	Count        int    // distinct travellers
	Seed         uint64
	Now          time.Time
}

// Dataset is a synthetic immigration log plus the labor registry that
// explains part of it.
type Dataset struct {
	Log   entry.Table
	Labor entry.Table
}

var (
	nationalities = []string{"CHN", "CHN", "CHN", "KOR", "JPN", "FRA", "USA", "AUS", "DEU", "LAO", "THA", "GBR"}
	givenNames    = []string{"Wang", "Li", "Kim", "Park", "Sato", "Anna", "John", "Marie", "Somchai", "Lucas"}
	familyNames   = []string{"Wei", "Na", "Min", "Jun", "Hiro", "Smith", "Brown", "Martin", "Keo", "Weber"}
	addresses     = []string{"KCN Bảo Yên", "Cty TNHH Minh Phát", "Lô CC 3", "Homestay Sapa", "Khách sạn Hoa Mai", "Resort Núi Xanh", "Tổ 5 phường Kim Tân"}
	workAddresses = []string{"KCN Bảo Yên", "CCN Đông Phố Mới", "Cty TNHH Minh Phát"}
)

func Generate(cfg GeneratorConfig) Dataset {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	today := entry.Day(cfg.Now)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	ds := Dataset{
		Log: entry.Table{
			Source:  "mockgen",
			Columns: []string{"Họ tên", "Ngày sinh", "Quốc tịch", "Số hộ chiếu", "Ngày đến", "Ngày đi", "Địa chỉ tạm trú"},
		},
		Labor: entry.Table{
			Source:  "mockgen",
			Columns: []string{"Số hộ chiếu", "Họ tên", "Vị trí", "Nơi làm việc"},
		},
	}

	for i := 0; i < cfg.Count; i++ {
		passport := fmt.Sprintf("M%07d", i+1)
		name := givenNames[rng.IntN(len(givenNames))] + " " + familyNames[rng.IntN(len(familyNames))]
		nat := nationalities[rng.IntN(len(nationalities))]
		birth := today.AddDate(-18-rng.IntN(45), 0, -rng.IntN(365))

		var worker bool
		visits := 1
		switch cfg.Scenario {
		case "labor":
			worker = rng.Float64() < 0.6
			visits = 1 + rng.IntN(4)
		case "churn":
			worker = rng.Float64() < 0.2
			visits = 2 + rng.IntN(6)
		default:
			worker = rng.Float64() < 0.1
		}
		if worker {
			ds.Labor.Rows = append(ds.Labor.Rows, []string{passport, name, "Kỹ thuật viên", workAddresses[rng.IntN(len(workAddresses))]})
		}

		// Visits run forward from an arrival within the last year, each
		// separated by a gap of at least two days so they stay distinct.
		arrival := entry.AddDays(today, -1-rng.IntN(300))
		for v := 0; v < visits && !arrival.After(today); v++ {
			length := stayLength(rng, cfg, worker)
			address := addresses[rng.IntN(len(addresses))]
			if worker {
				address = workAddresses[rng.IntN(len(workAddresses))]
			}
			departure := entry.AddDays(arrival, length)
			dep := entry.FormatVN(&departure)
			if departure.After(today) {
				dep = ""
			}
			ds.Log.Rows = append(ds.Log.Rows, []string{
				name, entry.FormatVN(&birth), nat, passport, entry.FormatVN(&arrival), dep, address,
			})
			arrival = entry.AddDays(departure, 2+rng.IntN(60))
		}
	}
	return ds
}

// stayLength samples a stay in days.
func stayLength(rng *rand.Rand, cfg GeneratorConfig, worker bool) int {
	k, lambda := 1.5, 4.0
	if worker {
		k, lambda = 2.5, 60.0
	}
	if cfg.Scenario == "churn" {
		lambda /= 2
	}
	var days float64
	if cfg.Distribution == "weibull" {
		days = weibullSample(rng, k, lambda)
	} else {
		days = lambda * (0.5 + rng.Float64())
	}
	return max(1, int(math.Round(days)))
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes log.jsonl and registry_labor.jsonl under outDir, ready for
// "staytrack import" and "staytrack import-registry labor".
func Save(outDir string, ds Dataset) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	for name, t := range map[string]entry.Table{"log.jsonl": ds.Log, "registry_labor.jsonl": ds.Labor} {
		if err := writeFile(filepath.Join(outDir, name), t); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, t entry.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tableio.WriteJSONL(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
