package importer

import (
	"bufio"
	"context"
	"strings"

	"targetdb/pkg/domain"
)

// ImportGeneLists loads a gene list text file: `>name` lines open a new
// list, `;` lines are comments, every other non-blank line is one gene.
// Members appearing before any header collect under a list named after the
// file itself.
func (im *Importer) ImportGeneLists(ctx context.Context, organism, path string) (*ImportSummary, error) {
	rc, err := openFile(path)
	if err != nil {
		return nil, domain.ValidationError{File: path, Reason: err.Error(), Fatal: true}
	}
	defer rc.Close()

	summary := newSummary(path, domain.EntityGeneList)

	type pending struct {
		name    string
		members []string // identifiers as written, with source line numbers
		lines   []int
	}
	lists := []*pending{}
	current := func() *pending {
		if len(lists) == 0 {
			lists = append(lists, &pending{name: fileStem(path)})
		}
		return lists[len(lists)-1]
	}

	scanner := bufio.NewScanner(rc)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		switch {
		case text == "" || strings.HasPrefix(text, ";"):
			continue
		case strings.HasPrefix(text, ">"):
			name := strings.TrimSpace(strings.TrimPrefix(text, ">"))
			if name == "" {
				summary.skip(ctx, line, "empty list name")
				continue
			}
			lists = append(lists, &pending{name: name})
		default:
			p := current()
			p.members = append(p.members, text)
			p.lines = append(p.lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.ValidationError{File: path, Reason: err.Error(), Fatal: true}
	}

	err = im.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		for _, p := range lists {
			gl := domain.GeneList{Name: p.name, Organism: organism}
			for i, ident := range p.members {
				g, ok := resolveGene(view, organism, ident)
				if !ok {
					summary.skip(ctx, p.lines[i], "unresolved gene "+ident)
					continue
				}
				gl.Members = append(gl.Members, g.GeneID)
			}
			if len(gl.Members) == 0 {
				continue
			}
			if err := tx.UpsertGeneList(gl); err != nil {
				summary.skip(ctx, p.lines[0], err.Error())
				continue
			}
			summary.Imported++
		}
		return summary.finish(ctx)
	})
	if err != nil {
		return summary, err
	}
	return summary, nil
}
