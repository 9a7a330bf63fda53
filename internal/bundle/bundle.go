// Package bundle creates the application source archive uploaded to S3.
// File selection honors the project's .ebignore file.
package bundle

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"drydock/internal/constants"
	apperrors "drydock/internal/errors"
)

type patternKind int

const (
	// kindDirPrefix matches a directory and everything beneath it
	// (pattern written with a trailing slash).
	kindDirPrefix patternKind = iota
	// kindSegment matches any single path segment, or the whole path
	// (pattern without a separator).
	kindSegment
	// kindDoubleStar matches by prefix or suffix around a ** marker.
	kindDoubleStar
	// kindGlob matches the full relative path with glob syntax.
	kindGlob
)

type pattern struct {
	kind patternKind
	text string
	re   *regexp.Regexp
}

// newGlob compiles a shell-style pattern matched against the full
// relative path. Unlike path.Match, * and ? cross directory separators,
// so docs/*.md also excludes docs/sub/readme.md.
func newGlob(text string) pattern {
	var b strings.Builder
	b.WriteString(`\A`)
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		case '[':
			j := i + 1
			if j < len(text) && (text[j] == '!' || text[j] == '^') {
				j++
			}
			if j < len(text) && text[j] == ']' {
				j++
			}
			for j < len(text) && text[j] != ']' {
				j++
			}
			if j == len(text) {
				b.WriteString(`\[`)
				break
			}
			class := strings.ReplaceAll(text[i+1:j], `\`, `\\`)
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString(`\z`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		// Malformed character class; treat the pattern as literal text.
		re = regexp.MustCompile(`\A` + regexp.QuoteMeta(text) + `\z`)
	}
	return pattern{kind: kindGlob, text: text, re: re}
}

func (p pattern) matches(relPath string) bool {
	switch p.kind {
	case kindDirPrefix:
		return strings.HasPrefix(relPath, p.text)
	case kindSegment:
		for _, segment := range strings.Split(relPath, "/") {
			if ok, _ := path.Match(p.text, segment); ok {
				return true
			}
		}
		return p.re.MatchString(relPath)
	case kindDoubleStar:
		if rest, ok := strings.CutPrefix(p.text, "**"); ok {
			return strings.HasSuffix(relPath, rest)
		}
		if rest, ok := strings.CutSuffix(p.text, "**"); ok {
			return strings.HasPrefix(relPath, rest)
		}
		return false
	default:
		return p.re.MatchString(relPath)
	}
}

func classify(line string) pattern {
	switch {
	case strings.HasSuffix(line, "/"):
		return pattern{kind: kindDirPrefix, text: line}
	case strings.Contains(line, "**"):
		return pattern{kind: kindDoubleStar, text: line}
	case !strings.Contains(line, "/"):
		p := newGlob(line)
		p.kind = kindSegment
		return p
	default:
		return newGlob(line)
	}
}

// IgnoreList holds the parsed exclusion and re-inclusion patterns of an
// .ebignore file.
type IgnoreList struct {
	exclusions []pattern
	negations  []pattern
}

// ParseIgnoreList reads patterns one per line. Blank lines and lines
// starting with # are skipped; a leading ! marks a re-inclusion pattern.
func ParseIgnoreList(r io.Reader) (*IgnoreList, error) {
	list := &IgnoreList{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if negated, ok := strings.CutPrefix(line, "!"); ok {
			// Re-inclusions always match against the full relative path.
			list.negations = append(list.negations, newGlob(negated))
			continue
		}
		list.exclusions = append(list.exclusions, classify(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.Processing(fmt.Sprintf("reading ignore patterns: %v", err))
	}
	return list, nil
}

// LoadIgnoreList parses the .ebignore file under the project root. A
// missing file yields an empty list, which excludes nothing.
func LoadIgnoreList(projectRoot string) (*IgnoreList, error) {
	f, err := os.Open(filepath.Join(projectRoot, constants.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &IgnoreList{}, nil
		}
		return nil, apperrors.Processing(fmt.Sprintf("opening %s: %v", constants.IgnoreFileName, err))
	}
	defer f.Close()
	return ParseIgnoreList(f)
}

// Excluded reports whether the slash-separated relative path is left out
// of the bundle. The first matching exclusion pattern decides; negation
// patterns can then rescue an excluded path. The ignore file itself is
// always excluded.
func (l *IgnoreList) Excluded(relPath string) bool {
	if relPath == constants.IgnoreFileName {
		return true
	}
	excluded := false
	for _, p := range l.exclusions {
		if p.matches(relPath) {
			excluded = true
			break
		}
	}
	if excluded {
		for _, p := range l.negations {
			if p.matches(relPath) {
				excluded = false
				break
			}
		}
	}
	return excluded
}

// Create packages the project's files into a ZIP archive in the system
// temp directory and returns the archive path and the number of files
// included.
func Create(projectRoot string) (string, int, error) {
	list, err := LoadIgnoreList(projectRoot)
	if err != nil {
		return "", 0, err
	}

	bundlePath := filepath.Join(os.TempDir(),
		fmt.Sprintf("app_bundle_%s.zip", time.Now().Format("20060102_150405")))
	f, err := os.Create(bundlePath)
	if err != nil {
		return "", 0, apperrors.Processing(fmt.Sprintf("creating bundle archive: %v", err))
	}
	defer f.Close()

	w := zip.NewWriter(f)
	count := 0

	err = filepath.WalkDir(projectRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(projectRoot, p)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		if list.Excluded(relPath) {
			return nil
		}
		if err := addFile(w, p, relPath); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return "", 0, apperrors.Processing(fmt.Sprintf("bundling project files: %v", err))
	}

	if err := w.Close(); err != nil {
		return "", 0, apperrors.Processing(fmt.Sprintf("finalizing bundle archive: %v", err))
	}
	return bundlePath, count, nil
}

func addFile(w *zip.Writer, filePath, relPath string) error {
	src, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := w.CreateHeader(&zip.FileHeader{
		Name:   relPath,
		Method: zip.Deflate,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
