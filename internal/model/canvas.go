package model

// CanvasData is the vector-editor payload. All three parts are opaque blobs
// owned by the front-end editor and are stored and returned verbatim.
type CanvasData struct {
	Front    string `json:"front"    bson:"front"`
	Back     string `json:"back"     bson:"back"`
	Position string `json:"position" bson:"position"`
}

// Canvas is paired 1:1 with a Card and shares its id.
type Canvas struct {
	CardID string     `json:"id"         bson:"_id"`
	Data   CanvasData `json:"canvasData" bson:"canvasData"`
}

// defaultCanvasJSON is the blank editor state: a white card-sized rectangle
// on a grey background.
const defaultCanvasJSON = `{"version":"5.2.4","background":"#DDDDDD","objects":[{"type":"rect","version":"5.2.4","originX":"left","originY":"top","left":584,"top":159,"width":648,"height":360,"fill":"#ffffff","stroke":null,"strokeWidth":0,"scaleX":1,"scaleY":1,"angle":0,"opacity":1,"visible":true,"id":"background","selectable":false,"evented":false}]}`

// DefaultCanvasData is what a freshly created card starts with.
func DefaultCanvasData() CanvasData {
	return CanvasData{
		Front:    defaultCanvasJSON,
		Back:     defaultCanvasJSON,
		Position: string(LayoutHorizontal),
	}
}
