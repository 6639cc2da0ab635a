package semanal

import (
	"errors"

	"typewatch/internal/engine/sem"
)

var errInconsistentMRO = errors.New("inconsistent method resolution order")

// linearizeMRO computes the C3 linearization of a class from its direct
// bases, whose own MROs must already be set.
func linearizeMRO(info *sem.TypeInfo) ([]*sem.TypeInfo, error) {
	seqs := make([][]*sem.TypeInfo, 0, len(info.Bases)+2)
	seqs = append(seqs, []*sem.TypeInfo{info})
	direct := make([]*sem.TypeInfo, 0, len(info.Bases))
	for _, base := range info.Bases {
		mro := base.Info.MRO
		if len(mro) == 0 {
			mro = []*sem.TypeInfo{base.Info}
		}
		seqs = append(seqs, append([]*sem.TypeInfo(nil), mro...))
		direct = append(direct, base.Info)
	}
	seqs = append(seqs, direct)
	return mergeSeqs(seqs)
}

func mergeSeqs(seqs [][]*sem.TypeInfo) ([]*sem.TypeInfo, error) {
	var result []*sem.TypeInfo
	for {
		live := seqs[:0]
		for _, s := range seqs {
			if len(s) > 0 {
				live = append(live, s)
			}
		}
		seqs = live
		if len(seqs) == 0 {
			return result, nil
		}

		var head *sem.TypeInfo
		for _, s := range seqs {
			candidate := s[0]
			if inTail(candidate, seqs) {
				continue
			}
			head = candidate
			break
		}
		if head == nil {
			return nil, errInconsistentMRO
		}

		result = append(result, head)
		for i, s := range seqs {
			if len(s) > 0 && s[0] == head {
				seqs[i] = s[1:]
			}
		}
	}
}

func inTail(candidate *sem.TypeInfo, seqs [][]*sem.TypeInfo) bool {
	for _, s := range seqs {
		for _, item := range s[1:] {
			if item == candidate {
				return true
			}
		}
	}
	return false
}
