package apihttp

import (
	"encoding/json"
	"fmt"
	"strings"

	"bandscope/internal/bands"
	"bandscope/internal/colors"
	"bandscope/internal/faults"

	"github.com/tidwall/gjson"
)

// 请求体先用 gjson 做形状检查，再反序列化；形状不对直接 400。

func parseObject(raw []byte) (gjson.Result, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return gjson.Result{}, faults.New(faults.KindMalformedInput, "request body is empty")
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, faults.New(faults.KindMalformedInput, "request body is not valid JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return gjson.Result{}, faults.New(faults.KindMalformedInput, "request body must be a JSON object")
	}
	return root, nil
}

func requireArray(root gjson.Result, key string) (gjson.Result, error) {
	v := root.Get(key)
	if !v.IsArray() {
		return v, faults.New(faults.KindMalformedInput, "%s must be an array", key)
	}
	return v, nil
}

// requirePixels rejects entries that are not {r,g,b} objects; a null pixel
// would otherwise decode as black.
func requirePixels(arr gjson.Result, key string) error {
	var err error
	arr.ForEach(func(idx, px gjson.Result) bool {
		if !px.IsObject() {
			err = faults.New(faults.KindMalformedInput, "%s[%d] must be an {r,g,b} object", key, idx.Int())
			return false
		}
		return true
	})
	return err
}

func requirePositive(root gjson.Result, key string) error {
	v := root.Get(key)
	if v.Type != gjson.Number || v.Int() <= 0 {
		return faults.New(faults.KindMalformedInput, "%s must be a positive number", key)
	}
	return nil
}

func optionalArray(root gjson.Result, key string) error {
	if v := root.Get(key); v.Exists() && v.Type != gjson.Null && !v.IsArray() {
		return faults.New(faults.KindMalformedInput, "%s must be an array", key)
	}
	return nil
}

func decodeInto(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return faults.Wrap(faults.KindMalformedInput, err, "decode request")
	}
	return nil
}

type detectPayload struct {
	Pixels       []colors.RGB  `json:"pixels"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Threshold    float64       `json:"threshold"`
	CustomColors []colors.Rule `json:"customColors"`
}

func parseDetect(raw []byte) (detectPayload, error) {
	var p detectPayload
	root, err := parseObject(raw)
	if err != nil {
		return p, err
	}
	pixels, err := requireArray(root, "pixels")
	if err != nil {
		return p, err
	}
	if err := requirePixels(pixels, "pixels"); err != nil {
		return p, err
	}
	if err := requirePositive(root, "width"); err != nil {
		return p, err
	}
	if err := requirePositive(root, "height"); err != nil {
		return p, err
	}
	if err := optionalArray(root, "customColors"); err != nil {
		return p, err
	}
	return p, decodeInto(raw, &p)
}

type scanPayload struct {
	Slices       [][]colors.RGB `json:"slices"`
	CustomColors []colors.Rule  `json:"customColors"`
	Aggregation  string         `json:"aggregation"`
	Threshold    float64        `json:"threshold"`
}

func parseScan(raw []byte) (scanPayload, error) {
	var p scanPayload
	root, err := parseObject(raw)
	if err != nil {
		return p, err
	}
	slices, err := requireArray(root, "slices")
	if err != nil {
		return p, err
	}
	var shapeErr error
	slices.ForEach(func(key, value gjson.Result) bool {
		if !value.IsArray() {
			shapeErr = faults.New(faults.KindMalformedInput, "slices[%d] must be an array", key.Int())
			return false
		}
		shapeErr = requirePixels(value, fmt.Sprintf("slices[%d]", key.Int()))
		return shapeErr == nil
	})
	if shapeErr != nil {
		return p, shapeErr
	}
	if err := optionalArray(root, "customColors"); err != nil {
		return p, err
	}
	return p, decodeInto(raw, &p)
}

type learnPayload struct {
	Detected colors.RGB
	Name     string
}

func parseLearn(raw []byte) (learnPayload, error) {
	var p learnPayload
	root, err := parseObject(raw)
	if err != nil {
		return p, err
	}
	detected := root.Get("detectedColor")
	if !detected.IsObject() {
		return p, faults.New(faults.KindMalformedInput, "detectedColor must be an object")
	}
	rgb, err := rgbOf(detected)
	if err != nil {
		return p, err
	}
	name := root.Get("correctColorName")
	if name.Type != gjson.String || strings.TrimSpace(name.String()) == "" {
		return p, faults.New(faults.KindMalformedInput, "correctColorName is required")
	}
	return learnPayload{Detected: rgb, Name: name.String()}, nil
}

type learnValuePayload struct {
	Bands     []bands.Band
	Value     string
	Tolerance string
}

// parseLearnFromValue accepts detected bands either as returned by
// detect-edges ({x,width,rgb:{r,g,b}}) or flat ({r,g,b}).
func parseLearnFromValue(raw []byte) (learnValuePayload, error) {
	var p learnValuePayload
	root, err := parseObject(raw)
	if err != nil {
		return p, err
	}
	list, err := requireArray(root, "detectedBands")
	if err != nil {
		return p, err
	}
	for i, el := range list.Array() {
		if !el.IsObject() {
			return p, faults.New(faults.KindMalformedInput, "detectedBands[%d] must be an object", i)
		}
		src := el.Get("rgb")
		if !src.Exists() {
			src = el
		}
		rgb, err := rgbOf(src)
		if err != nil {
			return p, faults.Wrap(faults.KindMalformedInput, err, fmt.Sprintf("detectedBands[%d]", i))
		}
		p.Bands = append(p.Bands, bands.Band{
			X:         int(el.Get("x").Int()),
			Width:     int(el.Get("width").Int()),
			ColorName: el.Get("colorName").String(),
			RGB:       rgb,
			Hex:       rgb.Hex(),
		})
	}
	value := root.Get("correctValue")
	if !value.Exists() || strings.TrimSpace(value.String()) == "" {
		return p, faults.New(faults.KindMalformedInput, "correctValue is required")
	}
	p.Value = value.String()
	p.Tolerance = root.Get("correctTolerance").String()
	return p, nil
}

func rgbOf(v gjson.Result) (colors.RGB, error) {
	var out [3]uint8
	for i, key := range []string{"r", "g", "b"} {
		c := v.Get(key)
		if c.Type != gjson.Number || c.Float() < 0 || c.Float() > 255 {
			return colors.RGB{}, faults.New(faults.KindMalformedInput, "%s must be a number in 0..255", key)
		}
		out[i] = colors.RoundChannel(c.Float())
	}
	return colors.RGB{R: out[0], G: out[1], B: out[2]}, nil
}

type decodePayload struct {
	Bands []string `json:"bands"`
}

func parseDecode(raw []byte) (decodePayload, error) {
	var p decodePayload
	root, err := parseObject(raw)
	if err != nil {
		return p, err
	}
	list, err := requireArray(root, "bands")
	if err != nil {
		return p, err
	}
	for i, el := range list.Array() {
		if el.Type != gjson.String {
			return p, faults.New(faults.KindMalformedInput, "bands[%d] must be a string", i)
		}
	}
	return p, decodeInto(raw, &p)
}
