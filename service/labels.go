package service

// Label sets the bundled models were trained with, in output order.
var DefaultLabels = map[string][]string{
	"disease": {
		"American Bollworm", "Anthracnose", "Army worm", "Bacterial Blight", "Brownspot", "Common",
		"Aphid", "Flag Smut", "Gray_Leaf_Spot", "Healthy Wheat", "Leaf Curl", "Leaf Smut",
		"Mosaic", "RedRot", "RedRust", "Rice Blast", "Tungro", "Brown leaf rust",
		"Wheat stem fly", "leaf bright", "mite", "scab", "Yellow rust", "Bacterial blight",
		"bollrot", "stem armyworm", "pink ballworm", "red cotton", "thrips",
		"Powdery Mildew", "Downy Mildew", "Verticillium Wilt", "Fusarium Wilt", "Crown Rot",
		"Gummy Stem Blight", "Root Knot Nematode", "Late Blight", "Clubroot", "Ergot",
		"Septoria Leaf Spot", "Angular Leaf Spot", "Sclerotinia Stem Rot",
	},
	"soil": {"Alluvial soil", "Black Soil", "Clay soil", "Red soil"},
}

var DefaultDescriptions = map[string]map[string]string{
	"soil": {
		"Alluvial soil": "Alluvial soil is fertile and supports a wide range of crops. It's suitable for growing rice, wheat, sugarcane, maize, cotton, and jute. This soil is found in river valleys and deltas, enriched by sediment deposition.",
		"Black Soil":    "Black soil, also known as Regur soil, is rich in iron, lime, and magnesium. It is ideal for crops such as cotton, groundnut, sunflower, sorghum, and pulses. It retains moisture well and is prevalent in volcanic regions.",
		"Clay soil":     "Clay soil has a fine texture and high nutrient content. It is best for crops like lettuce, spinach, cabbage, carrots, and beans. It retains water and nutrients but can be prone to waterlogging.",
		"Red soil":      "Red soil is rich in iron oxides, giving it a reddish color. It is suitable for crops such as millets, pulses, oilseeds, potatoes, and certain fruits. It often requires additional fertilizers for optimal crop growth.",
	},
}
