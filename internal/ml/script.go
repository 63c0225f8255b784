package ml

import "os"

// createInferenceScript writes the embedded Python bridge next to the model
// artifact. Kept as a generated file so operators can swap in their own
// onnx_inference.py without rebuilding the service.
func createInferenceScript(scriptPath string) error {
	script := `#!/usr/bin/env python3
"""ONNX inference bridge for the loan default prediction service."""
import sys
import json
import numpy as np

try:
    import onnxruntime as ort
except ImportError:
    print(json.dumps({"error": "onnxruntime not installed"}))
    sys.exit(1)

def main():
    if len(sys.argv) != 2:
        print(json.dumps({"error": "Usage: python onnx_inference.py <model_path>"}))
        sys.exit(1)

    model_path = sys.argv[1]

    try:
        request = json.load(sys.stdin)
        features = np.array([request["features"]], dtype=np.float32)

        session = ort.InferenceSession(model_path)
        input_name = session.get_inputs()[0].name
        outputs = session.run(None, {input_name: features})

        if len(outputs) == 2:
            # sklearn converters emit [label, probabilities]
            prediction = int(outputs[0][0])
            probs = outputs[1]
            if isinstance(probs[0], dict):
                # zipmap output: list of {class: prob} dicts
                probabilities = [probs[0].get(0, 0.0), probs[0].get(1, 0.0)]
            else:
                probabilities = list(map(float, probs[0]))
        elif len(outputs) == 1:
            output = outputs[0]
            if len(output.shape) > 1 and output.shape[-1] == 2:
                probabilities = list(map(float, output[0]))
                prediction = int(np.argmax(probabilities))
            else:
                p = float(output[0]) if 0.0 <= output[0] <= 1.0 else 0.5
                probabilities = [1.0 - p, p]
                prediction = int(p >= 0.5)
        else:
            raise ValueError(f"Unexpected number of outputs: {len(outputs)}")

        prob_sum = sum(probabilities)
        if abs(prob_sum - 1.0) > 0.01 and prob_sum > 0:
            probabilities = [p / prob_sum for p in probabilities]

        print(json.dumps({"probabilities": probabilities, "prediction": prediction}))

    except Exception as e:
        print(json.dumps({"error": str(e)}))
        sys.exit(1)

if __name__ == "__main__":
    main()
`

	return os.WriteFile(scriptPath, []byte(script), 0755)
}
