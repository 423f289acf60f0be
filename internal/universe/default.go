package universe

import "BreakoutScreener/internal/model"

// DefaultSectors lists the NSE sectors of the built-in universe.
var DefaultSectors = []string{"AUTO", "BANKING", "ENERGY", "FMCG", "INFRA", "IT", "METALS", "OILGAS", "PHARMA"}

var defaultInstruments = []model.Instrument{
	{ID: "NSE_EQ|HDFCBANK", Name: "HDFCBANK", Sector: "BANKING"},
	{ID: "NSE_EQ|ICICIBANK", Name: "ICICIBANK", Sector: "BANKING"},
	{ID: "NSE_EQ|INDUSINDBK", Name: "INDUSINDBK", Sector: "BANKING"},
	{ID: "NSE_EQ|BANKBARODA", Name: "BANKBARODA", Sector: "BANKING"},

	{ID: "NSE_EQ|INFY", Name: "INFY", Sector: "IT"},
	{ID: "NSE_EQ|TCS", Name: "TCS", Sector: "IT"},
	{ID: "NSE_EQ|TECHM", Name: "TECHM", Sector: "IT"},
	{ID: "NSE_EQ|HCLTECH", Name: "HCLTECH", Sector: "IT"},

	{ID: "NSE_EQ|SUNPHARMA", Name: "SUNPHARMA", Sector: "PHARMA"},
	{ID: "NSE_EQ|DRREDDY", Name: "DRREDDY", Sector: "PHARMA"},
	{ID: "NSE_EQ|CIPLA", Name: "CIPLA", Sector: "PHARMA"},
	{ID: "NSE_EQ|ZYDUSLIFE", Name: "ZYDUSLIFE", Sector: "PHARMA"},

	{ID: "NSE_EQ|MARUTI", Name: "MARUTI", Sector: "AUTO"},
	{ID: "NSE_EQ|M&M", Name: "M&M", Sector: "AUTO"},
	{ID: "NSE_EQ|HEROMOTOCO", Name: "HEROMOTOCO", Sector: "AUTO"},

	{ID: "NSE_EQ|BHEL", Name: "BHEL", Sector: "ENERGY"},
	{ID: "NSE_EQ|HINDPETRO", Name: "HINDPETRO", Sector: "ENERGY"},
	{ID: "NSE_EQ|SIEMENS", Name: "SIEMENS", Sector: "ENERGY"},
	{ID: "NSE_EQ|RELIANCE", Name: "RELIANCE", Sector: "ENERGY"},

	{ID: "NSE_EQ|ADANIENT", Name: "ADANIENT", Sector: "METALS"},
	{ID: "NSE_EQ|HINDALCO", Name: "HINDALCO", Sector: "METALS"},
	{ID: "NSE_EQ|HINDCOPPER", Name: "HINDCOPPER", Sector: "METALS"},
	{ID: "NSE_EQ|NATIONALUM", Name: "NATIONALUM", Sector: "METALS"},
	{ID: "NSE_EQ|JSWSTEEL", Name: "JSWSTEEL", Sector: "METALS"},

	{ID: "NSE_EQ|DABUR", Name: "DABUR", Sector: "FMCG"},
	{ID: "NSE_EQ|GODREJCP", Name: "GODREJCP", Sector: "FMCG"},
	{ID: "NSE_EQ|TATACONSUM", Name: "TATACONSUM", Sector: "FMCG"},
	{ID: "NSE_EQ|MARICO", Name: "MARICO", Sector: "FMCG"},

	{ID: "NSE_EQ|AEGISLOG", Name: "AEGISLOG", Sector: "OILGAS"},
	{ID: "NSE_EQ|BPCL", Name: "BPCL", Sector: "OILGAS"},
	{ID: "NSE_EQ|GUJGASLTD", Name: "GUJGASLTD", Sector: "OILGAS"},
	{ID: "NSE_EQ|PETRONET", Name: "PETRONET", Sector: "OILGAS"},

	{ID: "NSE_EQ|LT", Name: "LT", Sector: "INFRA"},
	{ID: "NSE_EQ|RVNL", Name: "RVNL", Sector: "INFRA"},
	{ID: "NSE_EQ|IRCON", Name: "IRCON", Sector: "INFRA"},
}

// Default returns the built-in NSE equity universe.
func Default() *Universe {
	u, err := New(DefaultSectors, defaultInstruments)
	if err != nil {
		panic(err)
	}
	return u
}
