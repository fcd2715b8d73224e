package optimize

import "riscc/src/lir"

// removeRedundantJumps implements Pass B: a Branch whose
// target label is reached by falling through a run of consecutive
// Labels immediately following it is redundant and is deleted. A Label
// is only deleted once no surviving Branch targets it anymore — a
// label can be the target of more than one Branch, and collapsing one
// of them must not orphan the others. Reports whether anything changed
// so the caller's fixed-point loop knows whether to repeat.
func removeRedundantJumps(body []lir.Instr) ([]lir.Instr, bool) {
	dropBranch := make([]bool, len(body))
	changed := false

	for i, in := range body {
		br, ok := in.(*lir.Branch)
		if !ok {
			continue
		}
		for j := i + 1; j < len(body); j++ {
			lbl, ok := body[j].(*lir.Label)
			if !ok {
				break
			}
			if lbl.ID == br.Target {
				dropBranch[i] = true
				changed = true
				break
			}
		}
	}
	if !changed {
		return body, false
	}

	refs := map[int]int{}
	for i, in := range body {
		if br, ok := in.(*lir.Branch); ok && !dropBranch[i] {
			refs[br.Target]++
		}
	}

	out := make([]lir.Instr, 0, len(body))
	for i, in := range body {
		if dropBranch[i] {
			continue
		}
		if lbl, ok := in.(*lir.Label); ok && refs[lbl.ID] == 0 {
			continue
		}
		out = append(out, in)
	}
	return out, true
}
