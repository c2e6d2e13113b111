// Package dataset parses the category, business and user input files and
// resolves leaf categories into root-to-leaf category paths.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"catcluster/internal/core"
)

// Files locates the three corpus files.
type Files struct {
	CategoryFile string
	BusinessFile string
	UserFile     string
}

// Corpus is the loaded category hierarchy, business memberships and user data.
// It is read-only once loaded.
type Corpus struct {
	parents    map[string]string   // child -> parent ("" for roots)
	businesses map[string][]string // business id -> leaf categories
	users      map[string][]string // user id -> business ids
}

// NewCorpus assembles a corpus from already-parsed parts.
func NewCorpus(parents map[string]string, businesses, users map[string][]string) *Corpus {
	return &Corpus{parents: parents, businesses: businesses, users: users}
}

// Open reads and parses all three files.
func Open(files Files) (*Corpus, error) {
	parents, err := readWith(files.CategoryFile, ParseCategories)
	if err != nil {
		return nil, err
	}
	businesses, err := readWith(files.BusinessFile, ParseBusinesses)
	if err != nil {
		return nil, err
	}
	users, err := readWith(files.UserFile, ParseUsers)
	if err != nil {
		return nil, err
	}
	return NewCorpus(parents, businesses, users), nil
}

func readWith[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	if path == "" {
		return zero, core.Configurationf("input file location is not configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	v, err := parse(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// ParseCategories reads "child,parent" rows. A row with a single field or an
// empty parent declares a root category.
func ParseCategories(r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	parents := make(map[string]string)
	for line := 1; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.Dataf("malformed category row %d: %v", line, err)
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			return nil, core.Dataf("category row %d has no child label", line)
		}
		if len(row) > 2 {
			return nil, core.Dataf("category row %d has %d fields, want at most 2", line, len(row))
		}
		parent := ""
		if len(row) == 2 {
			parent = strings.TrimSpace(row[1])
		}
		parents[strings.TrimSpace(row[0])] = parent
	}
	return parents, nil
}

// ParseBusinesses reads a JSON object mapping business id to leaf categories.
func ParseBusinesses(r io.Reader) (map[string][]string, error) {
	return parseStringLists(r, "business")
}

// ParseUsers reads a JSON object mapping user id to business ids.
func ParseUsers(r io.Reader) (map[string][]string, error) {
	return parseStringLists(r, "user")
}

func parseStringLists(r io.Reader, what string) (map[string][]string, error) {
	var m map[string][]string
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, core.Dataf("malformed %s file: %v", what, err)
	}
	if m == nil {
		return nil, core.Dataf("%s file is not a JSON object", what)
	}
	return m, nil
}

// PathFor resolves a category into its root-to-leaf path.
func (c *Corpus) PathFor(category string) (core.CategoryPath, error) {
	var reversed []string
	seen := make(map[string]bool)
	for p := category; p != ""; {
		if seen[p] {
			return nil, core.Dataf("category %q has a parent cycle through %q", category, p)
		}
		seen[p] = true
		parent, ok := c.parents[p]
		if !ok {
			return nil, core.Dataf("category %q has no parent entry (resolving %q)", p, category)
		}
		reversed = append(reversed, p)
		p = parent
	}
	if len(reversed) == 0 {
		return nil, core.Dataf("empty category label")
	}

	path := make(core.CategoryPath, len(reversed))
	for i, label := range reversed {
		path[len(reversed)-1-i] = label
	}
	return path, nil
}

// BusinessPaths returns the category path of every leaf category of a business.
func (c *Corpus) BusinessPaths(businessID string) ([]core.CategoryPath, error) {
	leaves, ok := c.businesses[businessID]
	if !ok {
		return nil, core.Dataf("unknown business %q", businessID)
	}
	paths := make([]core.CategoryPath, 0, len(leaves))
	for _, leaf := range leaves {
		path, err := c.PathFor(leaf)
		if err != nil {
			return nil, fmt.Errorf("business %q: %w", businessID, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// AllPaths returns every business's category paths in business id order.
// A path appears once per business that carries it.
func (c *Corpus) AllPaths() ([]core.CategoryPath, error) {
	var all []core.CategoryPath
	for _, id := range sortedKeys(c.businesses) {
		paths, err := c.BusinessPaths(id)
		if err != nil {
			return nil, err
		}
		all = append(all, paths...)
	}
	return all, nil
}

// Profiles builds user profiles. When validUIDs is non-nil only those users
// are loaded, in that order; otherwise every user in id order. A positive
// dataSize caps the number of profiles.
func (c *Corpus) Profiles(validUIDs []string, dataSize int) ([]core.UserProfile, error) {
	uids := validUIDs
	if uids == nil {
		uids = sortedKeys(c.users)
	}
	if dataSize > 0 && dataSize < len(uids) {
		uids = uids[:dataSize]
	}

	profiles := make([]core.UserProfile, 0, len(uids))
	for _, uid := range uids {
		businessIDs, ok := c.users[uid]
		if !ok {
			return nil, core.Dataf("unknown user %q", uid)
		}
		profile := core.UserProfile{ID: uid, Businesses: make(map[string][]core.CategoryPath, len(businessIDs))}
		for _, bid := range businessIDs {
			paths, err := c.BusinessPaths(bid)
			if err != nil {
				return nil, fmt.Errorf("user %q: %w", uid, err)
			}
			profile.Businesses[bid] = paths
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// NumUsers returns the number of users in the corpus.
func (c *Corpus) NumUsers() int {
	return len(c.users)
}

// ReadIDList reads a newline-delimited id list, skipping blank lines.
func ReadIDList(path string) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

// ReadTruth reads a newline-delimited list of integer ground-truth labels.
func ReadTruth(path string) ([]int, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	truth := make([]int, len(lines))
	for i, line := range lines {
		v, err := strconv.Atoi(line)
		if err != nil {
			return nil, core.Dataf("%s: line %d is not an integer label: %q", path, i+1, line)
		}
		truth[i] = v
	}
	return truth, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, core.Dataf("%s: %v", path, err)
	}
	return lines, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
