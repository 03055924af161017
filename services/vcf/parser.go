package vcf

import (
	"bufio"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"pvv/api/models"
	"pvv/api/models/constants/chromosome"
)

var (
	ErrNamingConvention = errors.New("file name does not follow the Patient<N> naming convention")
	ErrFileUnreadable   = errors.New("file is unreadable")

	patientFilePattern = regexp.MustCompile(`(?i)^patient(\d+)\.`)
	baseAllelePattern  = regexp.MustCompile(`^[ACGT]+$`)
	symbolicPattern    = regexp.MustCompile(`^<[A-Z0-9_.:\-]+>$`)
)

const maxLineLength = 16 * 1024 * 1024

type (
	Record struct {
		Line      int
		PatientId string
		Chrom     string
		Pos       int
		Id        string
		Ref       string
		Alt       string
		Qual      string
		Filter    string
		Info      []models.Info
		GeneHint  string
	}

	// LineError describes a data line that could not be turned into records
	LineError struct {
		Line   int    `json:"line"`
		Reason string `json:"reason"`
		Text   string `json:"text"`
	}

	Parser struct {
		Path      string
		FileName  string
		PatientId string
	}

	// Reader walks a single pass over the file; each Scan yields
	// either a record or a line error
	Reader struct {
		parser  *Parser
		file    *os.File
		gz      *gzip.Reader
		scanner *bufio.Scanner

		line    int
		pending []Record
		record  *Record
		lineErr *LineError
		err     error
	}
)

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// PatientIdFromFileName extracts the patient id from a `Patient<N>.<ext>` name,
// normalized without leading zeros
func PatientIdFromFileName(name string) (string, error) {
	base := filepath.Base(name)
	matches := patientFilePattern.FindStringSubmatch(base)
	if matches == nil {
		return "", fmt.Errorf("%w: %s", ErrNamingConvention, base)
	}

	id := strings.TrimLeft(matches[1], "0")
	if id == "" {
		id = "0"
	}
	return id, nil
}

// NewParser validates the file name; nothing is read until Open
func NewParser(path string) (*Parser, error) {
	patientId, err := PatientIdFromFileName(path)
	if err != nil {
		return nil, err
	}

	return &Parser{
		Path:      path,
		FileName:  filepath.Base(path),
		PatientId: patientId,
	}, nil
}

func (p *Parser) isGzipped() bool {
	return strings.HasSuffix(strings.ToLower(p.FileName), ".gz")
}

// Open starts a fresh pass at line 1
func (p *Parser) Open() (*Reader, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileUnreadable, p.Path, err)
	}

	r := &Reader{parser: p, file: f}

	var source io.Reader = f
	if p.isGzipped() {
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrFileUnreadable, p.Path, err)
		}
		r.gz = gr
		source = gr
	}

	r.scanner = bufio.NewScanner(source)
	r.scanner.Buffer(make([]byte, 64*1024), maxLineLength)

	return r, nil
}

// Digest returns the hex SHA-256 of the raw file contents
func (p *Parser) Digest() (string, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrFileUnreadable, p.Path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrFileUnreadable, p.Path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (r *Reader) Scan() bool {
	r.record = nil
	r.lineErr = nil

	for {
		if len(r.pending) > 0 {
			rec := r.pending[0]
			r.pending = r.pending[1:]
			r.record = &rec
			return true
		}

		if r.err != nil || !r.scanner.Scan() {
			if r.err == nil {
				if err := r.scanner.Err(); err != nil {
					r.err = fmt.Errorf("%w: %s: %v", ErrFileUnreadable, r.parser.Path, err)
				}
			}
			return false
		}
		r.line++

		line := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		records, lineErr := r.parser.parseLine(r.line, line)
		if lineErr != nil {
			r.lineErr = lineErr
			return true
		}
		r.pending = records
	}
}

// Record is nil when the current item is a line error
func (r *Reader) Record() *Record {
	return r.record
}

func (r *Reader) LineError() *LineError {
	return r.lineErr
}

// Err reports a fatal read failure, if any
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Close() error {
	if r.gz != nil {
		r.gz.Close()
	}
	return r.file.Close()
}

func (p *Parser) parseLine(lineNumber int, line string) ([]Record, *LineError) {
	fail := func(reason string) ([]Record, *LineError) {
		return nil, &LineError{Line: lineNumber, Reason: reason, Text: truncate(line, 512)}
	}

	rowComponents := strings.Split(line, "\t")
	if len(rowComponents) < 5 {
		return fail(fmt.Sprintf("expected at least 5 tab-separated columns, found %d", len(rowComponents)))
	}
	for i := range rowComponents {
		rowComponents[i] = strings.TrimSpace(rowComponents[i])
	}

	rawChrom := rowComponents[0]
	if !chromosome.IsValidHumanChromosome(rawChrom) {
		return fail(fmt.Sprintf("invalid chromosome %q", rawChrom))
	}
	chrom := chromosome.Normalize(rawChrom)

	pos, err := strconv.Atoi(rowComponents[1])
	if err != nil || pos <= 0 {
		return fail(fmt.Sprintf("invalid position %q", rowComponents[1]))
	}

	ref := strings.ToUpper(rowComponents[3])
	if !isValidAllele(ref) {
		return fail(fmt.Sprintf("invalid reference allele %q", rowComponents[3]))
	}

	var alts []string
	for _, alt := range strings.Split(rowComponents[4], ",") {
		alt = strings.ToUpper(strings.TrimSpace(alt))
		if !isValidAllele(alt) {
			return fail(fmt.Sprintf("invalid alternate allele %q", alt))
		}
		alts = append(alts, alt)
	}

	rec := Record{
		Line:      lineNumber,
		PatientId: p.PatientId,
		Chrom:     chrom,
		Pos:       pos,
		Ref:       ref,
	}

	// check for "empty" values (i.e, those with a period)
	if id := rowComponents[2]; id != "." {
		rec.Id = id
	}
	if len(rowComponents) > 5 && rowComponents[5] != "." {
		rec.Qual = rowComponents[5]
	}
	if len(rowComponents) > 6 && rowComponents[6] != "." {
		rec.Filter = rowComponents[6]
	}
	if len(rowComponents) > 7 && rowComponents[7] != "." {
		rec.Info = parseInfo(rowComponents[7])
		rec.GeneHint = geneHint(rec.Info)
	}

	records := make([]Record, 0, len(alts))
	for _, alt := range alts {
		r := rec
		r.Alt = alt
		records = append(records, r)
	}
	return records, nil
}

func isValidAllele(allele string) bool {
	if allele == "" {
		return false
	}
	return allele == "*" || baseAllelePattern.MatchString(allele) || symbolicPattern.MatchString(allele)
}

func parseInfo(value string) []models.Info {
	var allInfos []models.Info

	// Split all entries by semi-colon
	for _, scSep := range strings.Split(value, ";") {
		if scSep == "" {
			continue
		}

		// Split by the first equality symbol
		equalitySeparations := strings.SplitN(scSep, "=", 2)
		if len(equalitySeparations) == 2 {
			allInfos = append(allInfos, models.Info{
				Id:    equalitySeparations[0],
				Value: equalitySeparations[1],
			})
		} else { // flag
			allInfos = append(allInfos, models.Info{
				Id:    equalitySeparations[0],
				Value: "",
			})
		}
	}
	return allInfos
}

// geneHint picks the gene symbol carried by common INFO annotations,
// e.g. GENEINFO=SNCA:6622|SNCA-AS1:100847086
func geneHint(infos []models.Info) string {
	lookup := map[string]string{}
	for _, info := range infos {
		lookup[strings.ToUpper(info.Id)] = info.Value
	}

	if v, ok := lookup["GENEINFO"]; ok && v != "" {
		first := strings.Split(v, "|")[0]
		return strings.Split(first, ":")[0]
	}
	for _, key := range []string{"GENE", "SYMBOL", "GENE_SYMBOL"} {
		if v, ok := lookup[key]; ok && v != "" {
			return strings.Split(v, ",")[0]
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
