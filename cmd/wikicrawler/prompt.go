package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PentesterFlow/WikiCrawler/pkg/crawler"
)

// prompter asks the interactive questions of the crawl command. On EOF
// every question takes its default.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// ask prints question and returns the trimmed answer, or def when the
// answer is empty.
func (p *prompter) ask(question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		if errors.Is(err, io.EOF) && def == "" {
			return "", io.EOF
		}
		return def, nil
	}
	return answer, nil
}

func (p *prompter) seed() (string, error) {
	return p.ask("Enter the starting Wikipedia page title", crawler.DefaultSeedTitle)
}

// preset accepts a preset name or its number in the printed list.
func (p *prompter) preset() (string, error) {
	names := append(crawler.PresetNames(), crawler.PresetCustom)
	presets := crawler.Presets()

	fmt.Fprintln(p.out, "Select a crawl preset:")
	for i, name := range names {
		desc := "choose rate and workers"
		if pr, ok := presets[name]; ok {
			desc = pr.Description
		}
		fmt.Fprintf(p.out, "  %d) %-13s %s\n", i+1, name, desc)
	}

	for {
		answer, err := p.ask("Preset", "moderate")
		if err != nil {
			return "", err
		}
		answer = strings.ToLower(answer)
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(names) {
			return names[n-1], nil
		}
		for _, name := range names {
			if answer == name {
				return name, nil
			}
		}
		fmt.Fprintf(p.out, "Unknown preset %q.\n", answer)
	}
}

func (p *prompter) rate(def float64) (float64, error) {
	for {
		answer, err := p.ask("Requests per second", strconv.FormatFloat(def, 'f', -1, 64))
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(answer, 64)
		if err == nil && v > 0 {
			return v, nil
		}
		fmt.Fprintln(p.out, "Enter a number greater than 0.")
	}
}

func (p *prompter) workers(def, limit int) (int, error) {
	for {
		answer, err := p.ask(fmt.Sprintf("Number of workers (1-%d)", limit), strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(answer)
		if err == nil && v >= 1 && v <= limit {
			return v, nil
		}
		fmt.Fprintf(p.out, "Enter a whole number between 1 and %d.\n", limit)
	}
}

// configure fills in seed and rate settings that were not given as flags.
func (p *prompter) configure(cfg *crawler.Config, askSeed, askPreset bool) error {
	if askSeed {
		seed, err := p.seed()
		if err != nil {
			return err
		}
		cfg.Seed = seed
	}
	if !askPreset {
		return nil
	}

	name, err := p.preset()
	if err != nil {
		return err
	}
	if name != crawler.PresetCustom {
		return cfg.ApplyPreset(name)
	}

	rps, err := p.rate(cfg.RequestsPerSecond)
	if err != nil {
		return err
	}
	workers, err := p.workers(cfg.Workers, cfg.MaxPoolSize)
	if err != nil {
		return err
	}
	cfg.RequestsPerSecond = rps
	cfg.Workers = workers
	return nil
}
