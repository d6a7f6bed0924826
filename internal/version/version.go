// Package version carries the project metadata shown in banners, the version
// command and generated documentation.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	Project     = "Gaussian Extractor"
	Release     = "0.5.0"
	Author      = "Le Nhan Pham"
	Repository  = "https://github.com/lenhanpham/gaussian-extractor"
	Description = "High-performance Gaussian log file processor."

	// ManPage is the name of the generated section 1 manual page.
	ManPage  = "gaussianextractor"
	ManTitle = "Gaussian Extractor Documentation"
)

// Build metadata, overridden at link time with -ldflags "-X".
var (
	Version   = "dev"
	BuildTime = "unknown"
)

type SemVer struct {
	Major int
	Minor int
	Patch int
}

func ParseSemVer(tag string) (SemVer, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(tag), "v")
	if trimmed == "" {
		return SemVer{}, fmt.Errorf("empty version")
	}

	parts := strings.Split(trimmed, ".")
	if len(parts) != 3 {
		return SemVer{}, fmt.Errorf("invalid semantic version: %s", tag)
	}

	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return SemVer{}, fmt.Errorf("invalid version component %q in %s: %w", part, tag, err)
		}
		if n < 0 {
			return SemVer{}, fmt.Errorf("semantic version components must be non-negative: %s", tag)
		}
		nums[i] = n
	}
	return SemVer{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v SemVer) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Current returns the running version: the link-time Version when it is a
// valid semantic version, otherwise the source Release.
func Current() SemVer {
	if v, err := ParseSemVer(Version); err == nil {
		return v
	}
	v, _ := ParseSemVer(Release)
	return v
}

// HeaderInfo is the one-line identification used in report banners.
func HeaderInfo() string {
	return fmt.Sprintf("%s %s by %s", Project, Current(), Author)
}

const bannerWidth = 61

func bannerLine(content string) string {
	line := "* " + content
	if pad := bannerWidth - 2 - len(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	return line + " *"
}

// Banner is the boxed header written at the top of every report file.
func Banner() string {
	blank := strings.Repeat(" ", bannerWidth)
	stars := strings.Repeat("*", bannerWidth)
	return strings.Join([]string{
		blank,
		stars,
		bannerLine(HeaderInfo()),
		bannerLine(Repository),
		stars,
		blank,
	}, "\n") + "\n"
}

// Info mirrors the metadata a documentation build needs.
func Info() map[string]string {
	return map[string]string{
		"project":     Project,
		"version":     Current().String(),
		"author":      Author,
		"repository":  Repository,
		"description": Description,
		"man_page":    ManPage,
		"build_time":  BuildTime,
	}
}
