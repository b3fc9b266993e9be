package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrNoFilePath = errors.New("no file path provided")

// listSeparator is what envconfig splits []string fields on.
const listSeparator = ","

type section struct {
	indent int
	name   string
}

// LoadYamlFile reads a YAML file and exports its leaves into the environment as
// SECTION_KEY=value. Variables that are already set are left untouched.
//
// Supported subset: nested mappings, scalars, ${VAR:-default}, inline comments,
// and lists written either as [a, b] or as "- item" lines. Lists are joined with commas.
func LoadYamlFile(filepath string) error {
	if filepath == "" {
		return ErrNoFilePath
	}

	file, err := os.Open(filepath)
	if err != nil {
		return fmt.Errorf("could not open YAML file: %w", err)
	}
	defer file.Close()

	var (
		stack    []section
		listKey  string // env name of the block list being collected
		listVals []string
	)
	flushList := func() error {
		if listKey == "" {
			return nil
		}
		key, vals := listKey, listVals
		listKey, listVals = "", nil
		return setDefault(key, strings.Join(vals, listSeparator))
	}

	scanner := bufio.NewScanner(file)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := stripComment(scanner.Text())
		content := strings.TrimSpace(line)
		if content == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " "))

		if item, ok := strings.CutPrefix(content, "- "); ok && listKey != "" {
			listVals = append(listVals, unquote(strings.TrimSpace(item)))
			continue
		}
		if err := flushList(); err != nil {
			return err
		}

		// закрываем секции с отступом не меньше текущего
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}

		key, value, ok := strings.Cut(content, ":")
		if !ok {
			return fmt.Errorf("line %d: expected 'key: value', got %q", lineNo, content)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		if value == "" {
			// секция или начало списка, станет ясно на следующей строке
			stack = append(stack, section{indent: indent, name: key})
			listKey = envName(stack)
			continue
		}

		if err := setDefault(envName(append(stack, section{name: key})), parseValue(value)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading YAML file: %w", err)
	}

	return flushList()
}

// setDefault exports value unless the variable is already set. Empty values are skipped,
// so a section header never produces a variable of its own.
func setDefault(key, value string) error {
	if value == "" || os.Getenv(key) != "" {
		return nil
	}
	if err := os.Setenv(key, value); err != nil {
		return fmt.Errorf("could not set env var %s: %w", key, err)
	}
	return nil
}

func envName(stack []section) string {
	parts := make([]string, len(stack))
	for i, s := range stack {
		parts[i] = s.name
	}
	return strings.ToUpper(strings.Join(parts, "_"))
}

func parseValue(value string) string {
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		items := strings.Split(value[1:len(value)-1], ",")
		out := make([]string, 0, len(items))
		for _, item := range items {
			if item = unquote(strings.TrimSpace(item)); item != "" {
				out = append(out, expandDefault(item))
			}
		}
		return strings.Join(out, listSeparator)
	}
	return expandDefault(unquote(value))
}

// expandDefault resolves ${VAR:-default} against the current environment.
func expandDefault(value string) string {
	inner, ok := strings.CutPrefix(value, "${")
	if !ok || !strings.HasSuffix(inner, "}") {
		return value
	}
	name, def, ok := strings.Cut(strings.TrimSuffix(inner, "}"), ":-")
	if !ok {
		return value
	}
	if env := os.Getenv(strings.TrimSpace(name)); env != "" {
		return env
	}
	return strings.TrimSpace(def)
}

func unquote(value string) string {
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		return value[1 : len(value)-1]
	}
	return value
}

// stripComment drops a trailing "# ..." that is not inside quotes.
func stripComment(line string) string {
	var quote rune
	for i, ch := range line {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t'):
			return line[:i]
		}
	}
	return line
}
