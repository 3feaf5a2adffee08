package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"PredictionRadar/pkg/model"
)

func TestExtract(t *testing.T) {
	e := New(20)

	tests := []struct {
		name      string
		text      string
		wantOK    bool
		ticker    string
		pct       float64
		direction model.Direction
	}{
		{"up verb", "AAPL surges 25% after earnings", true, "AAPL", 25, model.DirectionUp},
		{"down verb", "XYZ plunges 22% on guidance cut", true, "XYZ", -22, model.DirectionDown},
		{"below minimum", "TSLA surges 10%", false, "", 0, ""},
		{"exactly minimum", "AMD climbs 20.0% in early trade", true, "AMD", 20, model.DirectionUp},
		{"decimal and lowercase ticker", "nvda rallies 21.5% on guidance", true, "NVDA", 21.5, model.DirectionUp},
		{"cashtag up", "$GME up 35% in premarket", true, "GME", 35, model.DirectionUp},
		{"cashtag down", "$AMC down 40% this session", true, "AMC", -40, model.DirectionDown},
		{"shares down", "PLTR shares down 28% after report", true, "PLTR", -28, model.DirectionDown},
		{"stock up", "SNAP stock up 31% on user growth", true, "SNAP", 31, model.DirectionUp},
		{"space before percent", "RIVN soars 45 % on delivery beat", true, "RIVN", 45, model.DirectionUp},
		{"skips small match and continues", "TSLA jumps 5% while RIVN soars 30%", true, "RIVN", 30, model.DirectionUp},
		{"up template wins over down", "XYZ drops 25% as ABC surges 30%", true, "ABC", 30, model.DirectionUp},
		{"two letter ticker", "ON falls 20% after downgrade", true, "ON", -20, model.DirectionDown},
		{"no claim", "Markets are mixed ahead of the Fed decision", false, "", 0, ""},
		{"ticker too long", "GOOGLE surges 25%", false, "", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim, ok := e.Extract(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.ticker, claim.Ticker)
			assert.Equal(t, tt.pct, claim.Percentage)
			assert.Equal(t, tt.direction, claim.Direction)
		})
	}
}

func TestExtractExclusionsVetoWholeText(t *testing.T) {
	e := New(20)

	texts := []string{
		"analysts predict AAPL could surge 30%",
		"AAPL surges 25% but analysts predict a pullback",
		"NVDA might jump after AMD soars 40%",
		"TSLA may rise; RIVN soars 30%",
		"XYZ expected to gain as ABC jumps 25%",
		"ABC projected to top estimates, shares up 50%",
		"DEF forecasted to recover after GHI plunges 30%",
		"What happens if NVDA jumps 30%",
		"New price target after META surges 22%",
		"NVDA surged 30% yesterday",
		"AMD climbs 25% last week",
		"INTC falls 21% last month",
		"BA tumbles 24% last quarter",
		"COIN surged last session, now MSTR soars 40%",
		"ROKU dropped last night; SPOT jumps 27%",
	}

	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			_, ok := e.Extract(text)
			assert.False(t, ok)
			assert.True(t, IsExcluded(text))
		})
	}
}

func TestExtractRespectsConfiguredMinimum(t *testing.T) {
	claim, ok := New(5).Extract("TSLA surges 10%")
	assert.True(t, ok)
	assert.Equal(t, 10.0, claim.Percentage)

	_, ok = New(50).Extract("AAPL surges 25%")
	assert.False(t, ok)
}

func TestExtractFields(t *testing.T) {
	e := New(20)

	claim, ok := e.ExtractFields("Biotech rally continues", "Shares of VRTX jumps 33% on trial data")
	assert.True(t, ok)
	assert.Equal(t, "VRTX", claim.Ticker)

	_, ok = e.ExtractFields("VRTX jumps 33%", "analysts predict more upside")
	assert.False(t, ok)
}
