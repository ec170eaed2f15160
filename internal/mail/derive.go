package mail

// FlagStatusFlagged is the provider value meaning the user flagged the
// message for follow-up.
const FlagStatusFlagged = "flagged"

// Derive recomputes IsFlagged, IsMoved and IsNew from the raw fields of
// m. It is applied on every ingestion path, so the three derived fields
// are always consistent with the raw fields on the same record.
func Derive(m *Message) {
	m.IsFlagged = isFlagged(*m)
	m.IsMoved = isMoved(*m)
	m.IsNew = !m.IsRead
}

func isFlagged(m Message) bool {
	return m.FlagStatus == FlagStatusFlagged
}

func isMoved(m Message) bool {
	return m.CurrentFolderID != "" &&
		m.OriginalFolderID != "" &&
		m.CurrentFolderID != m.OriginalFolderID
}
