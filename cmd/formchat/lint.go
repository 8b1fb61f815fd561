package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formchat"
	"github.com/goliatone/go-formchat/pkg/forms"
	"github.com/goliatone/go-formchat/pkg/jsonschema"
	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/validation"
)

const lintFetchTimeout = 15 * time.Second

type violation struct {
	file     string
	location string
	message  string
}

func newLintCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "lint PATH|URL...",
		Short: "Check form schemas for mistakes the validator would trip on",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, paths []string) error {
			var violations []violation
			for _, path := range paths {
				found, err := lintFile(cmd.Context(), path, strict)
				if err != nil {
					return fmt.Errorf("lint %s: %w", path, err)
				}
				violations = append(violations, found...)
			}
			return report(cmd.OutOrStdout(), violations)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "reject keywords the engine does not understand")
	return cmd
}

func lintFile(ctx context.Context, path string, strict bool) ([]violation, error) {
	src, err := schema.ParseSource(path)
	if err != nil {
		return nil, err
	}
	loaded, err := formchat.NewLoader(jsonschema.LoaderOptions{AllowHTTPFallback: true, RequestTimeout: lintFetchTimeout}).Load(ctx, src)
	if err != nil {
		return nil, err
	}
	raw := loaded.Raw()

	if !forms.IsOpenAPI(raw) {
		result := validation.LintJSONSchema(src, raw, validation.LintOptions{Strict: strict})
		return violationsOf(path, "", result), nil
	}

	decoded, err := forms.Decode(ctx, loaded, forms.LoadOptions{Strict: strict, ValidateOpenAPI: true})
	if err != nil {
		return []violation{{file: path, location: "#", message: err.Error()}}, nil
	}
	var out []violation
	for _, form := range decoded {
		out = append(out, violationsOf(path, form.Name, validation.ValidateForm(form.Schema))...)
	}
	return out, nil
}

func violationsOf(file, form string, result validation.SchemaValidationResult) []violation {
	out := make([]violation, 0, len(result.Issues))
	for _, issue := range result.Issues {
		location := issue.Path
		if location == "" {
			location = "#"
		}
		if form != "" {
			location = form + location
		}
		out = append(out, violation{file: file, location: location, message: issue.Message})
	}
	return out
}

func report(w io.Writer, violations []violation) error {
	if len(violations) == 0 {
		fmt.Fprintln(w, "ok")
		return nil
	}
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].file == violations[j].file {
			if violations[i].location == violations[j].location {
				return violations[i].message < violations[j].message
			}
			return violations[i].location < violations[j].location
		}
		return violations[i].file < violations[j].file
	})
	for _, v := range violations {
		fmt.Fprintf(w, "%s: %s -> %s\n", v.file, v.location, v.message)
	}
	return errors.New("lint: schema issues found")
}
