package trigger

import "testing"

func TestChannelNameGrammar(t *testing.T) {
	valid := []string{"STI001", "STI002", "STI009", "STI010", "STI016", "STI101"}
	for _, name := range valid {
		if !IsValidChannelName(name) {
			t.Errorf("expected %s to be valid", name)
		}
	}

	invalid := []string{"", "STI000", "STI017", "STI1", "STI0001", "sti001", "STI102", "MEG0111"}
	for _, name := range invalid {
		if IsValidChannelName(name) {
			t.Errorf("expected %s to be invalid", name)
		}
	}

	if IsBitLine(CombinedChannel) {
		t.Error("combined channel must not count as a bit-line")
	}
	if !IsBitLine("STI008") {
		t.Error("STI008 is a bit-line")
	}
}
