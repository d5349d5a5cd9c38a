package source

// EvalscriptCorineLC renders the raw CORINE Land Cover class band.
const EvalscriptCorineLC = `
    function setup() {
        return {
            input: ["CLC"],
            output: {
                bands: 1,
                sampleType: "UINT16"
            }
        };
    }

    function evaluatePixel(sample) {
        return [sample.CLC];
    }
`

// EvalscriptWaterBodies renders the raw Water Bodies occurrence band.
const EvalscriptWaterBodies = `
    function setup() {
        return {
            input: ["WB"],
            output: {
                bands: 1,
                sampleType: "UINT8"
            }
        };
    }

    function evaluatePixel(sample) {
        return [sample.WB];
    }
`

// ClassesCorineLC is the CORINE Land Cover legend attached to rendered
// outputs of the clms-corine-lc source.
var ClassesCorineLC = []Class{
	{Value: 1, Description: "Continuous urban fabric", ColorHint: "e6004d"},
	{Value: 2, Description: "Discontinuous urban fabric", ColorHint: "ff0000"},
	{Value: 3, Description: "Industrial or commercial units", ColorHint: "cc4df2"},
	{Value: 4, Description: "Road and rail networks and associated land", ColorHint: "cc0000"},
	{Value: 5, Description: "Port areas", ColorHint: "e6cccc"},
	{Value: 6, Description: "Airports", ColorHint: "e6cce6"},
	{Value: 7, Description: "Mineral extraction sites", ColorHint: "600cc"},
	{Value: 8, Description: "Dump sites", ColorHint: "a64d00"},
	{Value: 9, Description: "Construction sites", ColorHint: "ff4dff"},
	{Value: 10, Description: "Green urban areas", ColorHint: "ffa6ff"},
	{Value: 11, Description: "Sport and leisure facilities", ColorHint: "ffe6ff"},
	{Value: 12, Description: "Non-irrigated arable land", ColorHint: "ffffa8"},
	{Value: 13, Description: "Permanently irrigated land", ColorHint: "ffff00"},
	{Value: 14, Description: "Rice fields", ColorHint: "6e600"},
	{Value: 15, Description: "Vineyards", ColorHint: "e68000"},
	{Value: 16, Description: "Fruit trees and berry plantations", ColorHint: "f2a64d"},
	{Value: 17, Description: "Olive groves", ColorHint: "e6a600"},
	{Value: 18, Description: "Pastures", ColorHint: "e6e64d"},
	{Value: 19, Description: "Annual crops associated with permanent crops", ColorHint: "ffe6a6"},
	{Value: 20, Description: "Complex cultivation patterns", ColorHint: "ffe64d"},
	{Value: 21, Description: "Land principally occupied by agriculture with significant areas of natural vegetation", ColorHint: "e6cc4d"},
	{Value: 22, Description: "Agro-forestry areas", ColorHint: "f2cca6"},
	{Value: 23, Description: "Broad-leaved forest", ColorHint: "80ff00"},
	{Value: 24, Description: "Coniferous forest", ColorHint: "00a600"},
	{Value: 25, Description: "Mixed forest", ColorHint: "4dff00"},
	{Value: 26, Description: "Natural grasslands", ColorHint: "ccf24d"},
	{Value: 27, Description: "Moors and heathland", ColorHint: "a6ff80"},
	{Value: 28, Description: "Sclerophyllous vegetation", ColorHint: "a6e64d"},
	{Value: 29, Description: "Transitional woodland-shrub", ColorHint: "a6f200"},
	{Value: 30, Description: "Beaches - dunes - sands", ColorHint: "e6e6e6"},
	{Value: 31, Description: "Bare rocks", ColorHint: "cccccc"},
	{Value: 32, Description: "Sparsely vegetated areas", ColorHint: "ccffcc"},
	{Value: 33, Description: "Burnt areas", ColorHint: "000000"},
	{Value: 34, Description: "Glaciers and perpetual snow", ColorHint: "a6e6cc"},
	{Value: 35, Description: "Inland marshes", ColorHint: "a6a6ff"},
	{Value: 36, Description: "Peat bogs", ColorHint: "4d4dff"},
	{Value: 37, Description: "Salt marshes", ColorHint: "ccccff"},
	{Value: 38, Description: "Salines", ColorHint: "e6e6ff"},
	{Value: 39, Description: "Intertidal flats", ColorHint: "a6a6e6"},
	{Value: 40, Description: "Water courses", ColorHint: "00ccf2"},
	{Value: 41, Description: "Water bodies", ColorHint: "80f2e6"},
	{Value: 42, Description: "Coastal lagoons", ColorHint: "00ffa6"},
	{Value: 43, Description: "Estuaries", ColorHint: "a6ffe6"},
	{Value: 44, Description: "Sea and ocean", ColorHint: "e6f2ff"},
	{Value: 48, Description: "NODATA", ColorHint: "ffffff"},
}

// ClassesWaterBodies is the legend for the clms-water-bodies source.
var ClassesWaterBodies = []Class{
	{Value: 0, Description: "NODATA", ColorHint: "ffffff"},
	{Value: 1, Description: "Water", ColorHint: "0000ff"},
}
