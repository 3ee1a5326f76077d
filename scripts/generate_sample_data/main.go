package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rs/zerolog/log"

	"placement-predictor/internal/common"
	"placement-predictor/internal/schema"
)

func main() {
	var (
		outPath = flag.String("out", common.DefaultDataPath, "CSV file to write")
		rows    = flag.Int("rows", 215, "Number of students to generate")
		seed    = flag.Uint64("seed", 42, "Random seed")
	)
	flag.Parse()

	fmt.Printf("Generating %d synthetic students...\n", *rows)
	fmt.Printf("  Seed: %d\n", *seed)
	fmt.Printf("  Output: %s\n", *outPath)

	records := generateStudents(*rows, *seed)
	if err := writeCSV(*outPath, records); err != nil {
		log.Fatal().Err(err).Msg("Failed to write dataset")
	}

	placed := 0
	for _, r := range records[1:] {
		if r[len(r)-1] == "Placed" {
			placed++
		}
	}
	fmt.Printf("✓ Wrote %d rows (%d placed, %d not placed)\n", len(records)-1, placed, len(records)-1-placed)
}

// generateStudents returns a header row followed by n student rows holding
// student_id, every schema field and status. Placement follows a logistic
// score on the academic and interview results, so a trained model has signal
// to find.
func generateStudents(n int, seed uint64) [][]string {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	header := append([]string{common.StudentIDColumn}, schema.Names()...)
	header = append(header, common.StatusColumn)
	out := [][]string{header}

	for i := 0; i < n; i++ {
		values := make(map[string]float64)
		row := []string{strconv.Itoa(i + 1)}

		for _, f := range schema.Fields() {
			if f.Kind == schema.Categorical {
				row = append(row, f.Vocabulary[rng.IntN(len(f.Vocabulary))])
				continue
			}
			v := sample(rng, f)
			values[f.Name] = v
			if f.Range.Integral {
				row = append(row, strconv.Itoa(int(v)))
			} else {
				row = append(row, strconv.FormatFloat(v, 'f', 2, 64))
			}
		}

		score := 0.08*(values[schema.SSCPercentage]-67) +
			0.05*(values[schema.HSCPercentage]-66) +
			0.04*(values[schema.DegreePercentage]-66) +
			0.03*(values[schema.InterviewScore]-6)*10 +
			0.02*(values[schema.SkillsMatchPercent]-60) +
			0.6 // roughly two in three students are placed
		p := 1 / (1 + math.Exp(-score))
		if rng.Float64() < p {
			row = append(row, "Placed")
		} else {
			row = append(row, "Not Placed")
		}
		out = append(out, row)
	}
	return out
}

// sample draws a plausible value inside the field's range.
func sample(rng *rand.Rand, f schema.Field) float64 {
	switch {
	case f.Range.Integral:
		return float64(rng.IntN(6))
	case f.Name == schema.YearsExperience:
		return math.Round(rng.Float64()*5*10) / 10
	case f.Name == schema.InterviewScore:
		return clamp(6+rng.NormFloat64()*1.5, 0, 10)
	default:
		return clamp(66+rng.NormFloat64()*10, f.Range.Min, f.Range.Max)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// writeCSV stores records through gota so the file round-trips through the
// same loader the trainer uses.
func writeCSV(path string, records [][]string) error {
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df.Err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return df.WriteCSV(f)
}
