package media

import (
	"fmt"
	"image"
	"log"

	"gocv.io/x/gocv"
)

// FaceDetector locates faces in raw image bytes. Implementations must be
// safe for concurrent use once constructed, or the caller must serialize
// access (the ingestion pipeline calls Detect from its worker goroutines).
type FaceDetector interface {
	Detect(imageData []byte) ([]Box, error)
	Close()
}

// DNNFaceDetector runs an OpenCV DNN face detection network.
type DNNFaceDetector struct {
	net gocv.Net

	// configuration parameters used during detection
	inputSizeW    int
	inputSizeH    int
	scaleFactor   float64
	meanVal       gocv.Scalar
	confThreshold float32
}

// NewDNNFaceDetector loads the DNN model from the given config/model paths.
func NewDNNFaceDetector(configPath, modelPath string) (*DNNFaceDetector, error) {
	if configPath == "" || modelPath == "" {
		return nil, fmt.Errorf("detection(dnn): config or model path is empty")
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("detection(dnn): failed to load network: config=%s, model=%s", configPath, modelPath)
	}

	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)
	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Println("detection(dnn): set backend/target to CUDA")
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
		log.Println("detection(dnn): set backend/target to CPU (default)")
	}

	return &DNNFaceDetector{
		net:           net,
		inputSizeW:    300,
		inputSizeH:    300,
		scaleFactor:   1.0,
		meanVal:       gocv.NewScalar(104.0, 177.0, 123.0, 0),
		confThreshold: 0.5,
	}, nil
}

func (d *DNNFaceDetector) Close() {
	d.net.Close()
}

// Detect decodes the image and returns face boxes in source pixel
// coordinates, clamped to the image bounds.
func (d *DNNFaceDetector) Detect(imageData []byte) ([]Box, error) {
	img, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("detection(dnn): failed to decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("detection(dnn): decoded image is empty")
	}

	imgHeight := float32(img.Rows())
	imgWidth := float32(img.Cols())

	blob := gocv.BlobFromImage(img, d.scaleFactor, image.Pt(d.inputSizeW, d.inputSizeH), d.meanVal, false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	detectionsMat := d.net.Forward("")
	defer detectionsMat.Close()

	var boxes []Box

	sizes := detectionsMat.Size()
	if len(sizes) < 4 {
		log.Printf("detection(dnn): unexpected output matrix dimensions: %v", sizes)
		return boxes, nil
	}

	numDetections := sizes[2]
	if numDetections == 0 {
		return boxes, nil
	}

	// reshape the Mat to 2D: [N, 7] for easier access with GetFloatAt(row, col)
	detections2D := detectionsMat.Reshape(1, numDetections*sizes[3])
	detectionsData := detections2D.Reshape(1, numDetections)
	defer detectionsData.Close()

	for i := 0; i < numDetections; i++ {
		confidence := detectionsData.GetFloatAt(i, 2)
		if confidence <= d.confThreshold {
			continue
		}

		xMin := detectionsData.GetFloatAt(i, 3) * imgWidth
		yMin := detectionsData.GetFloatAt(i, 4) * imgHeight
		xMax := detectionsData.GetFloatAt(i, 5) * imgWidth
		yMax := detectionsData.GetFloatAt(i, 6) * imgHeight

		box := Box{
			Top:    int(max(0, yMin)),
			Left:   int(max(0, xMin)),
			Bottom: int(min(imgHeight, yMax)),
			Right:  int(min(imgWidth, xMax)),
		}
		if box.Valid(int(imgWidth), int(imgHeight)) {
			boxes = append(boxes, box)
		}
	}

	return boxes, nil
}
