package opencl

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"runtime"
)

const (
	relativePathToMainKernel = "CL/main.cl"
)

var includeRegex = regexp.MustCompile(`^\s*#include\s+"([^"]+)"`)

// Get the absolute path to the main kernel source file.
func mainKernelPath() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return path.Join(path.Dir(thisFile), relativePathToMainKernel)
}

// List the kernel sources next to mainFile. Includes are resolved relative to
// the including file, so this covers every file loadProgram can pull in from
// the bundled kernels.
func kernelSources(mainFile string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(filepath.Dir(mainFile), "*.cl"))
	if err != nil {
		return nil, fmt.Errorf("opencl: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("opencl: no kernel sources next to %s", mainFile)
	}
	for i, f := range files {
		if files[i], err = filepath.Abs(f); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// A kernel program flattened into a single source string.
type program struct {
	// Expanded source with all includes inlined.
	source []byte

	// Every file that contributed to the source.
	files []string
}

// Load a kernel source file and recursively inline its local includes.
// Each file is included at most once.
func loadProgram(mainFile string) (*program, error) {
	p := &program{}
	var buf bytes.Buffer
	if err := p.expand(&buf, mainFile, make(map[string]bool)); err != nil {
		return nil, err
	}
	p.source = buf.Bytes()
	return p, nil
}

func (p *program) expand(buf *bytes.Buffer, file string, seen map[string]bool) error {
	absFile, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	if seen[absFile] {
		return nil
	}
	seen[absFile] = true
	p.files = append(p.files, absFile)

	data, err := os.ReadFile(absFile)
	if err != nil {
		return fmt.Errorf("opencl: could not load kernel source: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := scanner.Text()
		if match := includeRegex.FindStringSubmatch(line); match != nil {
			if err = p.expand(buf, filepath.Join(filepath.Dir(absFile), match[1]), seen); err != nil {
				return fmt.Errorf("%s:%d: %w", filepath.Base(absFile), lineNum, err)
			}
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return scanner.Err()
}
