package bot

import (
	"context"
)

// Slot-filling state machine. A Form collects an ordered set of named
// slots across turns: each turn validates one proposed value for the
// first still-empty slot, re-prompting on rejection without touching
// previously accepted slots. Interruption and cancellation are decided
// by the Service (it owns the intent table); the form only exposes the
// pending slot and its prompt.

type FormStatus int

const (
	FormInProgress FormStatus = iota
	FormComplete
	FormCancelled
)

// unconfirmedSuffix marks a slot value that was rejected pending an
// explicit re-entry (e.g. an unknown class that would be auto-created).
const unconfirmedSuffix = "_unconfirmed"

type (
	// Validation is a validator's verdict on one proposed value.
	// Delta carries extra slot instructions such as confirmation
	// markers; it is applied whether or not the value was accepted.
	Validation struct {
		Value   string
		Replies []string
		Accept  bool
		Delta   SlotDelta
	}

	// Validator checks a proposed slot value against the utterance it
	// came from and the current slot snapshot. A non-nil error means
	// the check itself could not run (backend failure); collected
	// slots are preserved in that case.
	Validator func(ctx context.Context, utt Utterance, proposed string, slots Slots) (Validation, error)

	SlotSpec struct {
		Name     string
		Entity   string // NLU entity that can prefill this slot
		Prompt   string
		Validate Validator
	}

	Form struct {
		Name  string
		Slots []SlotSpec
	}

	FormOutcome struct {
		Status  FormStatus
		Pending string // slot awaiting a value while in progress
		Replies []string
		Delta   SlotDelta
		Values  Slots // full validated snapshot, set on FormComplete
	}
)

func (f *Form) spec(name string) *SlotSpec {
	for i := range f.Slots {
		if f.Slots[i].Name == name {
			return &f.Slots[i]
		}
	}
	return nil
}

// pending returns the first slot without a value, or nil when the form
// is fully filled.
func (f *Form) pending(slots Slots) *SlotSpec {
	for i := range f.Slots {
		if slots.Get(f.Slots[i].Name) == "" {
			return &f.Slots[i]
		}
	}
	return nil
}

// Prompt returns the prompt of the slot currently being collected.
func (f *Form) Prompt(slots Slots) string {
	if spec := f.pending(slots); spec != nil {
		return spec.Prompt
	}
	return ""
}

// Activate starts the form: slots prefilled by the triggering intent's
// entities are accepted as-is (validation is skipped once for values
// the user just stated), then the first missing slot is prompted for.
func (f *Form) Activate(utt Utterance, slots Slots) FormOutcome {
	out := FormOutcome{Status: FormInProgress}
	out.Delta.set(SlotActiveForm, f.Name)

	for i := range f.Slots {
		spec := &f.Slots[i]
		if slots.Get(spec.Name) != "" {
			continue
		}
		if v := utt.Entity(spec.Entity); v != "" {
			out.Delta.set(spec.Name, v)
		}
	}

	view := out.Delta.Apply(slots)
	if next := f.pending(view); next != nil {
		out.Pending = next.Name
		out.Replies = append(out.Replies, next.Prompt)
		return out
	}
	out.Status = FormComplete
	out.Values = view
	return out
}

// Step consumes one turn's input for the pending slot: the matching
// entity value if present, the raw text otherwise. A rejected value
// leaves every other slot untouched and re-prompts; an accepted value
// advances to the next slot or completes the form.
func (f *Form) Step(ctx context.Context, utt Utterance, slots Slots) (FormOutcome, error) {
	out := FormOutcome{Status: FormInProgress}

	spec := f.pending(slots)
	if spec == nil {
		out.Status = FormComplete
		out.Values = slots.Clone()
		return out, nil
	}
	out.Pending = spec.Name

	proposed := utt.Entity(spec.Entity)
	if proposed == "" {
		proposed = utt.Text
	}

	v, err := spec.Validate(ctx, utt, proposed, slots)
	if err != nil {
		return out, err
	}
	out.Delta.merge(v.Delta)
	out.Replies = append(out.Replies, v.Replies...)

	if !v.Accept {
		out.Replies = append(out.Replies, spec.Prompt)
		return out, nil
	}

	out.Delta.set(spec.Name, v.Value)
	view := out.Delta.Apply(slots)
	if next := f.pending(view); next != nil {
		out.Pending = next.Name
		out.Replies = append(out.Replies, next.Prompt)
		return out, nil
	}
	out.Status = FormComplete
	out.Values = view
	return out, nil
}

// Reset clears every slot the form owns, including confirmation
// markers and the active-form pointer.
func (f *Form) Reset() SlotDelta {
	var d SlotDelta
	for i := range f.Slots {
		d.clear(f.Slots[i].Name, f.Slots[i].Name+unconfirmedSuffix)
	}
	d.clear(SlotActiveForm)
	return d
}
